//go:build gocv

package facebluring

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// HaarCascade is the OpenCV Haar frontal face classifier. It is only built
// with the gocv tag since it needs the native OpenCV libraries.
type HaarCascade struct {
	classifier gocv.CascadeClassifier
}

// NewHaarCascade loads a Haar cascade XML file.
func NewHaarCascade(path string) (*HaarCascade, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("can not load haar cascade %s", path)
	}
	return &HaarCascade{classifier: classifier}, nil
}

// HaarFallback returns a FallbackLoader resolving the Haar cascade through
// locator.
func HaarFallback(locator ResourceLocator) FallbackLoader {
	return func() (CascadeClassifier, error) {
		if locator == nil {
			return nil, fmt.Errorf("%w: %s (no locator)", ErrResourceNotFound, HaarCascadeName)
		}
		path, err := locator.Locate(HaarCascadeName)
		if err != nil {
			return nil, err
		}
		return NewHaarCascade(path)
	}
}

// DetectMultiScale implements CascadeClassifier.
func (h *HaarCascade) DetectMultiScale(img image.Image, minSide int) ([]image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	rects := h.classifier.DetectMultiScaleWithParams(
		gray, 1.1, 5, 0, image.Pt(minSide, minSide), image.Pt(0, 0),
	)
	return rects, nil
}

// Close releases the native classifier.
func (h *HaarCascade) Close() error {
	return h.classifier.Close()
}
