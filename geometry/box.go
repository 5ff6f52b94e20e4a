// Package geometry holds the box arithmetic shared by detection fusion and
// redaction: padding, overlap measurement and greedy deduplication.
//
// All coordinates are 0-based pixels with (0,0) at the top-left corner. A Box
// covers the half-open region [X, X+Width) x [Y, Y+Height).
package geometry

import (
	"image"
	"math"
)

// DefaultDedupThreshold is the IoU at or above which two boxes are treated
// as the same face.
const DefaultDedupThreshold = 0.35

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Padding holds the fraction of a box's width (X) and height (Y) added to
// each side by Pad.
type Padding struct {
	X float64
	Y float64
}

// DefaultPadding grows faces enough to cover hair, ears and chin.
var DefaultPadding = Padding{X: 0.30, Y: 0.40}

// FromRect converts an image.Rectangle to a Box.
func FromRect(r image.Rectangle) Box {
	r = r.Canon()
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area returns Width*Height, or 0 for degenerate boxes.
func (b Box) Area() int {
	if b.Empty() {
		return 0
	}
	return b.Width * b.Height
}

// Empty reports whether the box has no positive area.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Clip intersects the box with [0, imageWidth] x [0, imageHeight]. A box that
// falls completely outside the image comes back with zero size.
func Clip(b Box, imageWidth, imageHeight int) Box {
	x1 := max(0, b.X)
	y1 := max(0, b.Y)
	x2 := min(imageWidth, b.X+b.Width)
	y2 := min(imageHeight, b.Y+b.Height)
	return Box{X: x1, Y: y1, Width: max(0, x2-x1), Height: max(0, y2-y1)}
}

// Pad expands b by p.X*Width on the left and right and p.Y*Height on the top
// and bottom, then clips the result to the image. The padded box always
// contains the part of b that lies inside the image.
func Pad(b Box, imageWidth, imageHeight int, p Padding) Box {
	px := int(float64(b.Width) * p.X)
	py := int(float64(b.Height) * p.Y)
	return Clip(Box{
		X:      b.X - px,
		Y:      b.Y - py,
		Width:  b.Width + 2*px,
		Height: b.Height + 2*py,
	}, imageWidth, imageHeight)
}

// IoU returns the intersection over union of a and b in [0,1]. It is 0 when
// the union has no area.
func IoU(a, b Box) float64 {
	interW := min(a.X+a.Width, b.X+b.Width) - max(a.X, b.X)
	interH := min(a.Y+a.Height, b.Y+b.Height) - max(a.Y, b.Y)
	inter := max(0, interW) * max(0, interH)

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return math.Min(1, float64(inter)/float64(union))
}

// Deduplicate keeps boxes in input order, dropping any box whose IoU with an
// already kept box is at or above threshold. Earlier boxes win, so callers
// encode priority through ordering.
func Deduplicate(boxes []Box, threshold float64) []Box {
	kept := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		duplicate := false
		for _, k := range kept {
			if IoU(b, k) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, b)
		}
	}
	return kept
}
