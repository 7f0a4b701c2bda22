package extractor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0002.jpg", "frame_0001.jpg", "frame_0003.jpg", "notes.txt", "cover.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	frames, err := ListFrames(dir, 5)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, filepath.Join(dir, "frame_0001.jpg"), frames[0].Path)
	assert.Equal(t, 0, frames[0].Offset)
	assert.Equal(t, 5, frames[1].Offset)
	assert.Equal(t, 10, frames[2].Offset)
}

func TestExtractFramesMissingVideo(t *testing.T) {
	_, err := ExtractFrames(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), t.TempDir(), 5, slog.Default())
	assert.Error(t, err)
}

func TestExtractFramesReusesExisting(t *testing.T) {
	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("not really a video"), 0644))

	out := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(out, "clip"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "clip", "frame_0001.jpg"), []byte("x"), 0644))

	frames, err := ExtractFrames(context.Background(), video, out, 10, slog.Default())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].Offset)
}

func TestExtractFramesRejectsBadInterval(t *testing.T) {
	_, err := ExtractFrames(context.Background(), "clip.mp4", t.TempDir(), 0, slog.Default())
	assert.Error(t, err)
}
