package models

// Violation is one row of a traffic analysis report.
type Violation struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	StartTime   int    `json:"start_time"`
	EndTime     int    `json:"end_time"`
	Description string `json:"description"`
}

// ActiveAt reports whether t (seconds from the start of the video) falls
// inside the violation's interval. Both ends are inclusive.
func (v Violation) ActiveAt(t float64) bool {
	return float64(v.StartTime) <= t && t <= float64(v.EndTime)
}

// Active returns the violations active at t, in their original order.
func Active(violations []Violation, t float64) []Violation {
	var active []Violation
	for _, v := range violations {
		if v.ActiveAt(t) {
			active = append(active, v)
		}
	}
	return active
}

// FrameSample is a still extracted from a video at a known offset
type FrameSample struct {
	Path   string
	Offset int // seconds
}

// SearchResult is a stored violation matched by similarity search
type SearchResult struct {
	Violation
	Video      string  `json:"video"`
	Similarity float64 `json:"similarity"`
}
