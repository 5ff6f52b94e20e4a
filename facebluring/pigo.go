package facebluring

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
)

// ScoreScale maps a [0,1] confidence onto pigo's unbounded detection score.
// A confidence of 0.5 asks for Q >= 5, the cut-off pigo itself recommends.
const ScoreScale = 10.0

var errClosed = errors.New("detector is closed")

// PigoConfig holds the cascade parameters of a pigo pass. Face sizes are
// given as fractions of the image's shorter side so one config serves every
// resolution.
type PigoConfig struct {
	Angle        float64
	MinRatio     float64
	MaxRatio     float64
	MinSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IouThreshold float64
}

// PigoRangeConfig returns the cascade window for a range mode. Short range
// looks for large faces, full range for small ones.
func PigoRangeConfig(mode RangeMode) PigoConfig {
	if mode == FullRange {
		return PigoConfig{MinRatio: 0.02, MaxRatio: 0.40}
	}
	return PigoConfig{MinRatio: 0.08, MaxRatio: 1.0}
}

func (c PigoConfig) withDefaults() PigoConfig {
	if c.MinSize == 0 {
		c.MinSize = 20
	}
	if c.MaxRatio == 0 {
		c.MaxRatio = 1.0
	}
	if c.ShiftFactor == 0 {
		c.ShiftFactor = 0.1
	}
	if c.ScaleFactor == 0 {
		c.ScaleFactor = 1.1
	}
	if c.IouThreshold == 0 {
		c.IouThreshold = 0.2
	}
	return c
}

// sizes returns the min and max face side in pixels for an image.
func (c PigoConfig) sizes(cols, rows int) (int, int) {
	side := float64(min(cols, rows))
	minSize := max(c.MinSize, int(side*c.MinRatio))
	maxSize := max(minSize, int(side*c.MaxRatio))
	return minSize, maxSize
}

// PigoDetector is a Detector backed by a pigo pixel-intensity cascade.
type PigoDetector struct {
	cfg        PigoConfig
	classifier *pigo.Pigo
}

// NewPigoDetector unpacks a pigo cascade file.
func NewPigoDetector(cascade []byte, cfg PigoConfig) (*PigoDetector, error) {
	classifier, err := unpackCascade(cascade)
	if err != nil {
		return nil, err
	}
	return &PigoDetector{cfg: cfg.withDefaults(), classifier: classifier}, nil
}

// PigoDetectors returns a DetectorFactory that loads the face finder
// cascade through locator. Every detector gets its own classifier.
func PigoDetectors(locator ResourceLocator) DetectorFactory {
	return func(mode RangeMode) (Detector, error) {
		data, err := readResource(locator, PigoCascadeName)
		if err != nil {
			return nil, fmt.Errorf("load %s detector: %w", mode, err)
		}
		return NewPigoDetector(data, PigoRangeConfig(mode))
	}
}

// Detect implements Detector.
func (d *PigoDetector) Detect(img image.Image, confidence float64) ([]RelativeBox, error) {
	if d.classifier == nil {
		return nil, errClosed
	}

	cols, rows := img.Bounds().Dx(), img.Bounds().Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}
	minSize, maxSize := d.cfg.sizes(cols, rows)

	faces := runCascade(d.classifier, img, d.cfg, minSize, maxSize)

	var boxes []RelativeBox
	for _, face := range faces {
		if float64(face.Q) < confidence*ScoreScale {
			continue
		}
		r := detectionRect(face)
		boxes = append(boxes, RelativeBox{
			XMin:   float64(r.Min.X) / float64(cols),
			YMin:   float64(r.Min.Y) / float64(rows),
			Width:  float64(r.Dx()) / float64(cols),
			Height: float64(r.Dy()) / float64(rows),
		})
	}
	return boxes, nil
}

// Close releases the classifier. Later calls to Detect fail.
func (d *PigoDetector) Close() error {
	d.classifier = nil
	return nil
}

func unpackCascade(cascade []byte) (*pigo.Pigo, error) {
	var p = pigo.NewPigo()
	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	classifier, err := p.Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade file error: %w", err)
	}
	return classifier, nil
}

func runCascade(classifier *pigo.Pigo, img image.Image, cfg PigoConfig, minSize, maxSize int) []pigo.Detection {
	src := imaging.Clone(img)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	cParams := pigo.CascadeParams{
		MinSize:     minSize,
		MaxSize:     maxSize,
		ShiftFactor: cfg.ShiftFactor,
		ScaleFactor: cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	// The result contains quadruplets of row, column, scale and detection score.
	faces := classifier.RunCascade(cParams, cfg.Angle)
	return classifier.ClusterDetections(faces, cfg.IouThreshold)
}

func detectionRect(face pigo.Detection) image.Rectangle {
	return image.Rect(
		face.Col-face.Scale/2,
		face.Row-face.Scale/2,
		face.Col+face.Scale/2,
		face.Row+face.Scale/2,
	)
}
