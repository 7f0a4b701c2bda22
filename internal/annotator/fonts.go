package annotator

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrFontUnavailable is returned when a required font cannot be loaded.
var ErrFontUnavailable = errors.New("font unavailable")

// FontConfig names the TrueType/OpenType files used for alert boxes
type FontConfig struct {
	BoldPath    string
	BoldSize    float64
	RegularPath string
	RegularSize float64
}

// Fonts holds the faces used for the two lines of an alert box
type Fonts struct {
	Bold    font.Face
	Regular font.Face
}

// LoadFonts opens both faces. There is no fallback face.
func LoadFonts(cfg FontConfig) (*Fonts, error) {
	bold, err := loadFace(cfg.BoldPath, cfg.BoldSize)
	if err != nil {
		return nil, err
	}
	regular, err := loadFace(cfg.RegularPath, cfg.RegularSize)
	if err != nil {
		bold.Close()
		return nil, err
	}
	return &Fonts{Bold: bold, Regular: regular}, nil
}

// Close releases both faces
func (f *Fonts) Close() error {
	return errors.Join(f.Bold.Close(), f.Regular.Close())
}

func loadFace(path string, size float64) (font.Face, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no font path configured", ErrFontUnavailable)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFontUnavailable, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFontUnavailable, path, err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFontUnavailable, path, err)
	}
	return face, nil
}

// measure returns the ink bounds of s and its pixel width and height
func measure(face font.Face, s string) (fixed.Rectangle26_6, int, int) {
	bounds, _ := font.BoundString(face, s)
	return bounds, (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}
