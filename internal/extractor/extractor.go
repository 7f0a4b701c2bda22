package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bdougie/trafficwatch/internal/models"
)

// ExtractFrames samples one JPEG every interval seconds from videoPath into a
// subfolder of outputDir named after the video.
func ExtractFrames(ctx context.Context, videoPath, outputDir string, interval int, logger *slog.Logger) ([]models.FrameSample, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %d", interval)
	}

	// Check if video file exists
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	frameDirPath := filepath.Join(outputDir, videoName)

	// Reuse frames from an earlier extraction
	if frames, err := ListFrames(frameDirPath, interval); err == nil && len(frames) > 0 {
		logger.Info("frames already extracted, skipping", "dir", frameDirPath, "frames", len(frames))
		return frames, nil
	}

	if err := os.MkdirAll(frameDirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory '%s': %v", frameDirPath, err)
	}

	logger.Info("extracting frames", "video", videoPath, "dir", frameDirPath, "interval", interval)

	ffmpegCommand := exec.CommandContext(ctx,
		"ffmpeg",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%d", interval),
		"-q:v", "3",
		fmt.Sprintf("%s/frame_%%04d.jpg", frameDirPath),
	)

	// Capture output for better error reporting
	output, err := ffmpegCommand.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	return ListFrames(frameDirPath, interval)
}

// ListFrames returns the frame_NNNN.jpg files in dir in order, with offsets
// derived from their sequence number.
func ListFrames(dir string, interval int) ([]models.FrameSample, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %v", dir, err)
	}

	var names []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(strings.ToLower(file.Name()), ".jpg") {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	frames := make([]models.FrameSample, 0, len(names))
	for _, name := range names {
		var n int
		if _, err := fmt.Sscanf(name, "frame_%04d.jpg", &n); err != nil || n < 1 {
			continue
		}
		frames = append(frames, models.FrameSample{
			Path:   filepath.Join(dir, name),
			Offset: (n - 1) * interval,
		})
	}
	return frames, nil
}
