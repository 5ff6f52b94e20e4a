package facebluring

import (
	"image"

	pigo "github.com/esimov/pigo/core"
)

// CascadeClassifier is the classical small-face pass used in group mode.
// DetectMultiScale returns pixel rectangles relative to img.Bounds().Min and
// ignores faces whose side is below minSide.
type CascadeClassifier interface {
	DetectMultiScale(img image.Image, minSide int) ([]image.Rectangle, error)
	Close() error
}

// FallbackLoader loads the cascade fallback. Fusion treats any error as
// "no fallback available".
type FallbackLoader func() (CascadeClassifier, error)

// FallbackMinScore is the pigo score a small-face detection must reach.
const FallbackMinScore = 5.0

// PigoCascade runs the pigo face finder with a window opened down to tiny
// faces.
type PigoCascade struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
	minScore   float64
}

// NewPigoCascade unpacks a pigo cascade for small-face detection.
func NewPigoCascade(cascade []byte, minScore float64) (*PigoCascade, error) {
	classifier, err := unpackCascade(cascade)
	if err != nil {
		return nil, err
	}
	cfg := PigoConfig{ShiftFactor: 0.05}.withDefaults()
	return &PigoCascade{classifier: classifier, cfg: cfg, minScore: minScore}, nil
}

// PigoFallback returns a FallbackLoader reading the face finder through
// locator.
func PigoFallback(locator ResourceLocator) FallbackLoader {
	return func() (CascadeClassifier, error) {
		data, err := readResource(locator, PigoCascadeName)
		if err != nil {
			return nil, err
		}
		return NewPigoCascade(data, FallbackMinScore)
	}
}

// DetectMultiScale implements CascadeClassifier.
func (c *PigoCascade) DetectMultiScale(img image.Image, minSide int) ([]image.Rectangle, error) {
	if c.classifier == nil {
		return nil, errClosed
	}
	cols, rows := img.Bounds().Dx(), img.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	faces := runCascade(c.classifier, img, c.cfg, minSide, max(minSide, min(cols, rows)))

	var rects []image.Rectangle
	for _, face := range faces {
		if float64(face.Q) < c.minScore {
			continue
		}
		rects = append(rects, detectionRect(face))
	}
	return rects, nil
}

// Close releases the classifier.
func (c *PigoCascade) Close() error {
	c.classifier = nil
	return nil
}
