package report

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatError describes a timestamp that could not be turned into an interval.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %s", e.Input, e.Reason)
}

// ParseTimeRange converts "MM:SS" or "MM:SS - MM:SS" into start and end
// seconds. A single timestamp is widened to [t, t+instant].
func ParseTimeRange(s string, instant int) (int, int, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) != 2 {
			return 0, 0, &FormatError{Input: s, Reason: "expected exactly one range separator"}
		}
		start, err := parseClock(parts[0])
		if err != nil {
			return 0, 0, &FormatError{Input: s, Reason: err.Error()}
		}
		end, err := parseClock(parts[1])
		if err != nil {
			return 0, 0, &FormatError{Input: s, Reason: err.Error()}
		}
		if end < start {
			return 0, 0, &FormatError{Input: s, Reason: "range ends before it starts"}
		}
		return start, end, nil
	}

	t, err := parseClock(s)
	if err != nil {
		return 0, 0, &FormatError{Input: s, Reason: err.Error()}
	}
	return t, t + instant, nil
}

// parseClock parses a single MM:SS token.
func parseClock(token string) (int, error) {
	fields := strings.Split(strings.TrimSpace(token), ":")
	if len(fields) != 2 {
		return 0, fmt.Errorf("%q is not MM:SS", strings.TrimSpace(token))
	}

	minutes, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad minutes in %q", token)
	}
	seconds, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad seconds in %q", token)
	}

	return int(minutes)*60 + int(seconds), nil
}
