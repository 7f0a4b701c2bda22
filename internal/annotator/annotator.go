package annotator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/bdougie/trafficwatch/internal/models"
	"github.com/bdougie/trafficwatch/internal/video"
)

// ErrOpenInput is returned when the source video cannot be opened.
var ErrOpenInput = errors.New("cannot open input video")

const (
	topMargin    = 20
	leftMargin   = 20
	boxPadding   = 10
	lineSpacing  = 8
	boxSpacing   = 15
	cornerRadius = 8
)

var (
	boxFill      = color.NRGBA{R: 0, G: 0, B: 0, A: 150}
	alertColor   = color.NRGBA{R: 255, G: 50, B: 50, A: 255}
	subjectColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// FrameReader yields decoded frames until io.EOF
type FrameReader interface {
	ReadFrame() (*image.RGBA, error)
}

// FrameWriter receives frames in output order
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
}

// Box is the placement of one alert on a frame
type Box struct {
	Rect    image.Rectangle
	Title   string
	Subject string

	titleBounds   fixed.Rectangle26_6
	titleHeight   int
	subjectBounds fixed.Rectangle26_6
}

// Annotator burns alert boxes for active violations into video frames
type Annotator struct {
	fonts  *Fonts
	codec  video.Codec
	logger *slog.Logger
}

// New creates an Annotator. Fonts are loaded here so a missing font fails
// before any video is touched.
func New(cfg FontConfig, codec video.Codec, logger *slog.Logger) (*Annotator, error) {
	fonts, err := LoadFonts(cfg)
	if err != nil {
		return nil, err
	}
	return &Annotator{fonts: fonts, codec: codec, logger: logger}, nil
}

// Close releases the fonts
func (a *Annotator) Close() error {
	return a.fonts.Close()
}

// Annotate reads inputPath, overlays violations and writes outputPath with
// the same size, rate and frame count.
func (a *Annotator) Annotate(ctx context.Context, inputPath, outputPath string, violations []models.Violation) error {
	info, err := video.Probe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrOpenInput, inputPath, err)
	}

	reader, err := video.OpenReader(ctx, inputPath, info)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrOpenInput, inputPath, err)
	}
	defer reader.Close()

	writer, err := video.CreateWriter(ctx, outputPath, info, a.codec)
	if err != nil {
		return fmt.Errorf("failed to open output video %s: %w", outputPath, err)
	}

	a.logger.Info("annotating video", "input", inputPath, "width", info.Width, "height", info.Height, "fps", info.FPS)
	frames, procErr := a.Process(reader, writer, info.FPS, violations)
	closeErr := writer.Close()
	if procErr != nil {
		return procErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finish output video %s: %w", outputPath, closeErr)
	}

	a.logger.Info("annotated video saved", "output", outputPath, "frames", frames)
	return nil
}

// Process copies every frame from src to dst, drawing the violations active
// at each frame's time. It returns the number of frames written.
func (a *Annotator) Process(src FrameReader, dst FrameWriter, fps float64, violations []models.Violation) (int, error) {
	if fps <= 0 {
		return 0, fmt.Errorf("invalid frame rate %v", fps)
	}

	count := 0
	for {
		frame, err := src.ReadFrame()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read frame %d: %w", count, err)
		}

		t := float64(count) / fps
		if active := models.Active(violations, t); len(active) > 0 {
			a.Render(frame, active)
		}

		if err := dst.WriteFrame(frame); err != nil {
			return count, fmt.Errorf("failed to write frame %d: %w", count, err)
		}
		count++
	}
}

// Layout stacks one box per violation from the top-left margin down, in the
// order given.
func (a *Annotator) Layout(active []models.Violation) []Box {
	boxes := make([]Box, 0, len(active))
	y := topMargin
	for _, v := range active {
		title := "ALERT: " + v.Name
		subject := "SUBJECT: " + v.Subject

		tb, tw, th := measure(a.fonts.Bold, title)
		sb, sw, sh := measure(a.fonts.Regular, subject)

		width := max(tw, sw) + boxPadding*2
		height := th + sh + lineSpacing + boxPadding*2

		boxes = append(boxes, Box{
			Rect:          image.Rect(leftMargin, y, leftMargin+width, y+height),
			Title:         title,
			Subject:       subject,
			titleBounds:   tb,
			titleHeight:   th,
			subjectBounds: sb,
		})
		y += height + boxSpacing
	}
	return boxes
}

// Render draws the alert boxes for active onto img
func (a *Annotator) Render(img draw.Image, active []models.Violation) {
	for _, box := range a.Layout(active) {
		drawRoundedRect(img, box.Rect, cornerRadius, boxFill)

		x := box.Rect.Min.X + boxPadding
		y := box.Rect.Min.Y + boxPadding
		drawText(img, a.fonts.Bold, alertColor, box.Title, box.titleBounds, x, y)
		drawText(img, a.fonts.Regular, subjectColor, box.Subject, box.subjectBounds, x, y+box.titleHeight+lineSpacing)
	}
}

// drawText places s so the top-left of its ink box sits at (x, y)
func drawText(dst draw.Image, face font.Face, c color.Color, s string, bounds fixed.Rectangle26_6, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(x) - bounds.Min.X,
			Y: fixed.I(y) - bounds.Min.Y,
		},
	}
	d.DrawString(s)
}

// drawRoundedRect fills r with c, rounding its corners by radius
func drawRoundedRect(dst draw.Image, r image.Rectangle, radius float32, c color.Color) {
	w, h := float32(r.Dx()), float32(r.Dy())
	if w <= 0 || h <= 0 {
		return
	}
	radius = min(radius, w/2, h/2)

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.MoveTo(radius, 0)
	z.LineTo(w-radius, 0)
	z.QuadTo(w, 0, w, radius)
	z.LineTo(w, h-radius)
	z.QuadTo(w, h, w-radius, h)
	z.LineTo(radius, h)
	z.QuadTo(0, h, 0, h-radius)
	z.LineTo(0, radius)
	z.QuadTo(0, 0, radius, 0)
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, draw.Over)
}
