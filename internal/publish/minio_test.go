package publish

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"analysis_report.json":    "application/json",
		"out/annotated_video.mp4": "video/mp4",
		"clip.MOV":                "video/quicktime",
		"clip.avi":                "video/x-msvideo",
		"notes.txt":               "application/octet-stream",
		"noext":                   "application/octet-stream",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "run-1/analysis_report.json", ObjectKey("run-1", "/tmp/out/analysis_report.json"))
	assert.Equal(t, "run-1/annotated_video.mp4", ObjectKey("run-1", "annotated_video.mp4"))
}
