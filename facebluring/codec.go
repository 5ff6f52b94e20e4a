package facebluring

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/channel"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrUnsupportedImage is returned when an image cannot be encoded in the
// format implied by its extension.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Still is a decoded still image split into colour and optional alpha.
type Still struct {
	// Color is an opaque copy of the image; detection and blur only ever see
	// colour channels.
	Color *image.NRGBA
	// Alpha holds the original transparency, or nil for opaque formats.
	Alpha *image.Gray
}

// LoadStill decodes an image file and splits off its alpha channel.
func LoadStill(path string) (*Still, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can not open %s error: %w", path, err)
	}

	still := &Still{Color: imaging.Clone(src)}
	if !still.Color.Opaque() {
		still.Alpha = channel.Extract(still.Color, channel.Alpha)
		pix := still.Color.Pix
		for i := 3; i < len(pix); i += 4 {
			pix[i] = 0xff
		}
	}
	return still, nil
}

// Merge returns the colour buffer with the original alpha re-applied.
func (s *Still) Merge() *image.NRGBA {
	if s.Alpha == nil {
		return s.Color
	}
	out := imaging.Clone(s.Color)
	for y := 0; y < out.Rect.Dy(); y++ {
		row := out.Pix[y*out.Stride:]
		alpha := s.Alpha.Pix[y*s.Alpha.Stride:]
		for x := 0; x < out.Rect.Dx(); x++ {
			row[x*4+3] = alpha[x]
		}
	}
	return out
}

// SaveStill encodes img by the extension of path: lossless PNG, or JPEG at
// full quality.
func SaveStill(img image.Image, path string) error {
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, strings.ToLower(filepath.Ext(path)))
	}
	err := imaging.Save(img, path,
		imaging.JPEGQuality(100),
		imaging.PNGCompressionLevel(png.NoCompression),
	)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
