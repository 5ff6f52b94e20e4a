package facebluring

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"

	"thaitanloi365/go-face-redact/geometry"
)

// DefaultOverlayColor is the outline colour of debug boxes.
const DefaultOverlayColor = "#FFFF00"

// PreviewOptions controls preview rendering.
type PreviewOptions struct {
	// MaxWidth downscales wider previews, keeping the aspect ratio. Zero
	// disables resizing.
	MaxWidth int
	// BoxColor is the debug outline colour.
	BoxColor color.Color
	// LineWidth is the debug outline width in pixels.
	LineWidth float64
}

// DefaultPreviewOptions returns an 800px wide preview with yellow outlines.
func DefaultPreviewOptions() PreviewOptions {
	c, _ := ParseColor(DefaultOverlayColor)
	return PreviewOptions{MaxWidth: 800, BoxColor: c, LineWidth: 2}
}

// ParseColor parses a "#RRGGBB" hex colour.
func ParseColor(hex string) (color.Color, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return c, nil
}

// Preview copies frame, outlines boxes on the copy when any are given and
// downscales it to opts.MaxWidth. frame itself is never modified.
func Preview(frame image.Image, boxes []geometry.Box, opts PreviewOptions) image.Image {
	var out image.Image = imaging.Clone(frame)

	if len(boxes) > 0 {
		dc := gg.NewContextForImage(out)
		boxColor := opts.BoxColor
		if boxColor == nil {
			boxColor = color.RGBA{R: 255, G: 255, A: 255}
		}
		dc.SetColor(boxColor)
		dc.SetLineWidth(max(1, opts.LineWidth))
		for _, b := range boxes {
			dc.DrawRectangle(float64(b.X), float64(b.Y), float64(b.Width), float64(b.Height))
			dc.Stroke()
		}
		out = dc.Image()
	}

	if opts.MaxWidth > 0 && out.Bounds().Dx() > opts.MaxWidth {
		out = imaging.Resize(out, opts.MaxWidth, 0, imaging.Linear)
	}
	return out
}
