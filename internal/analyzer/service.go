package analyzer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrProcessingFailed means the service accepted the upload but could not process it.
	ErrProcessingFailed = errors.New("remote processing failed")

	// ErrRequest wraps failures talking to the service.
	ErrRequest = errors.New("analysis request failed")
)

// State is the processing state of an uploaded video
type State int

const (
	StateProcessing State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateProcessing:
		return "processing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle references a video held by the service
type Handle struct {
	Name        string
	DisplayName string
	URI         string
	MIMEType    string
	State       State
}

// Service is a multimodal model that can watch an uploaded video. Every
// handle returned by Upload must be released with Delete.
type Service interface {
	Upload(ctx context.Context, path string) (Handle, error)
	Status(ctx context.Context, h Handle) (State, error)
	Generate(ctx context.Context, h Handle, prompt string) (string, error)
	Delete(ctx context.Context, h Handle) error
}

var videoMIMETypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

func videoMIMEType(path string) string {
	if t, ok := videoMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "video/mp4"
}
