package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Info describes the first video stream of a file
type Info struct {
	Width     int
	Height    int
	FPS       float64
	FrameRate string // as reported by ffprobe, e.g. "30000/1001"
	Rotation  int    // clockwise display rotation in degrees; frames are decoded unrotated
}

type probeOutput struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// Probe reads stream dimensions and frame rate with ffprobe
func Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,avg_frame_rate:stream_tags=rotate:stream_side_data=rotation",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbe(output)
}

func parseProbe(data []byte) (Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 {
		return Info{}, errors.New("no video stream found")
	}

	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return Info{}, fmt.Errorf("invalid frame size %dx%d", s.Width, s.Height)
	}

	rate := s.AvgFrameRate
	fps, err := ParseFrameRate(rate)
	if err != nil {
		rate = s.RFrameRate
		if fps, err = ParseFrameRate(rate); err != nil {
			return Info{}, err
		}
	}

	info := Info{Width: s.Width, Height: s.Height, FPS: fps, FrameRate: rate}

	// display matrix rotation is counterclockwise, the legacy tag clockwise
	for _, sd := range s.SideDataList {
		if sd.Rotation != nil {
			info.Rotation = normalizeRotation(-int(*sd.Rotation))
		}
	}
	if info.Rotation == 0 && s.Tags.Rotate != "" {
		if deg, err := strconv.Atoi(s.Tags.Rotate); err == nil {
			info.Rotation = normalizeRotation(deg)
		}
	}
	return info, nil
}

func normalizeRotation(deg int) int {
	return ((deg % 360) + 360) % 360
}

// ParseFrameRate parses "num/den" or a plain number into frames per second
func ParseFrameRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	num, den, found := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	d := 1.0
	if found {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("invalid frame rate %q", s)
		}
	}
	if n <= 0 || d <= 0 {
		return 0, fmt.Errorf("invalid frame rate %q", s)
	}
	return n / d, nil
}

// Reader decodes frames as RGBA through an ffmpeg pipe
type Reader struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	rect   image.Rectangle
	done   bool
}

// OpenReader starts decoding path. Frames are returned in presentation
// order without dropping or duplicating any.
func OpenReader(ctx context.Context, path string, info Info) (*Reader, error) {
	r := &Reader{rect: image.Rect(0, 0, info.Width, info.Height)}
	r.cmd = exec.CommandContext(ctx, "ffmpeg", readerArgs(path)...)
	r.cmd.Stderr = &r.stderr

	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	r.stdout = stdout

	if err := r.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return r, nil
}

// readerArgs keeps coded orientation so frames match the probed size
func readerArgs(path string) []string {
	return []string{
		"-v", "error",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-vsync", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
}

// ReadFrame returns the next frame, or io.EOF after the last one. A decoder
// that exits with an error is reported instead of io.EOF.
func (r *Reader) ReadFrame() (*image.RGBA, error) {
	if r.done {
		return nil, io.EOF
	}
	img := image.NewRGBA(r.rect)
	if _, err := io.ReadFull(r.stdout, img.Pix); err != nil {
		r.done = true
		waitErr := r.cmd.Wait()
		if waitErr != nil {
			return nil, fmt.Errorf("ffmpeg decode failed: %v: %s", waitErr, strings.TrimSpace(r.stderr.String()))
		}
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("truncated frame: %w", err)
	}
	return img, nil
}

// Close stops the decoder if it is still running
func (r *Reader) Close() error {
	if r.done {
		return nil
	}
	r.done = true
	r.stdout.Close()
	r.cmd.Process.Kill()
	r.cmd.Wait()
	return nil
}

// Codec selects the encoder and container tag for a Writer
type Codec struct {
	Name string // ffmpeg encoder, e.g. "mpeg4"
	Tag  string // fourcc, e.g. "mp4v"
}

// DefaultCodec matches the mp4v fourcc
var DefaultCodec = Codec{Name: "mpeg4", Tag: "mp4v"}

// Writer encodes RGBA frames through an ffmpeg pipe
type Writer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
}

// CreateWriter starts an encoder writing to path with the same size and
// rate as info.
func CreateWriter(ctx context.Context, path string, info Info, codec Codec) (*Writer, error) {
	if codec.Name == "" {
		codec = DefaultCodec
	}
	rate := info.FrameRate
	if rate == "" {
		rate = strconv.FormatFloat(info.FPS, 'f', -1, 64)
	}

	args := []string{
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", rate,
		"-i", "-",
		"-c:v", codec.Name,
		"-q:v", "3",
	}
	if codec.Tag != "" {
		args = append(args, "-tag:v", codec.Tag)
	}
	if info.Rotation != 0 {
		args = append(args, "-metadata:s:v:0", "rotate="+strconv.Itoa(info.Rotation))
	}
	args = append(args, "-pix_fmt", "yuv420p", path)

	w := &Writer{width: info.Width, height: info.Height}
	w.cmd = exec.CommandContext(ctx, "ffmpeg", args...)
	w.cmd.Stderr = &w.stderr

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	w.stdin = stdin

	if err := w.cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return w, nil
}

// WriteFrame appends one frame; its bounds must match the output size
func (w *Writer) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != w.width || b.Dy() != w.height {
		return fmt.Errorf("frame is %dx%d, want %dx%d", b.Dx(), b.Dy(), w.width, w.height)
	}

	rowLen := w.width * 4
	if img.Stride == rowLen && b.Min == (image.Point{}) {
		_, err := w.stdin.Write(img.Pix[:rowLen*w.height])
		return err
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		if _, err := w.stdin.Write(img.Pix[start : start+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the encoder and waits for it to finish
func (w *Writer) Close() error {
	if err := w.stdin.Close(); err != nil {
		return err
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode failed: %v: %s", err, strings.TrimSpace(w.stderr.String()))
	}
	return nil
}
