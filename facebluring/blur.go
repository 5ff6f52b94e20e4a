package facebluring

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"

	"thaitanloi365/go-face-redact/geometry"
)

// BlurPasses is how many times each region is blurred. Three passes of a
// bounded kernel give a smoother falloff than one pass of a huge kernel.
const BlurPasses = 3

// KernelSize returns the blur kernel side for a box: 40% of its longer side,
// at least 3, always odd.
func KernelSize(b geometry.Box) int {
	k := max(3, int(math.Round(0.4*float64(max(b.Width, b.Height)))))
	if k%2 == 0 {
		k++
	}
	return k
}

// kernelSigma picks the Gaussian sigma for which imaging.Blur uses a kernel
// of exactly k taps, i.e. a radius of (k-1)/2.
func kernelSigma(k int) float64 {
	return (float64(k-1)/2 - 0.001) / 3
}

// Redactor blurs face regions in place.
type Redactor struct{}

// Redact blurs every box of img. Boxes are in coordinates relative to
// img.Bounds().Min; parts outside the buffer are ignored.
func (Redactor) Redact(img *image.NRGBA, boxes []geometry.Box) {
	for _, b := range boxes {
		rect := b.Rect().Add(img.Bounds().Min).Intersect(img.Bounds())
		if rect.Empty() {
			continue
		}

		sigma := kernelSigma(KernelSize(b))
		var zone *image.NRGBA = imaging.Crop(img, rect)
		for i := 0; i < BlurPasses; i++ {
			zone = imaging.Blur(zone, sigma)
		}
		draw.Draw(img, rect, zone, image.Point{}, draw.Src)
	}
}
