package facebluring

import (
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"

	"thaitanloi365/go-face-redact/geometry"
	"thaitanloi365/go-face-redact/logger"
)

// Fusion runs every configured detection pass over a frame and merges the
// boxes into one padded, deduplicated list.
//
// Raw boxes are concatenated primary, then secondary, then cascade fallback
// before deduplication. Because deduplication keeps the first box it sees,
// primary detections win over the other passes when they overlap.
type Fusion struct {
	cfg       Config
	primary   Detector
	secondary Detector
	fallback  CascadeClassifier
	log       logrus.FieldLogger

	Padding        geometry.Padding
	DedupThreshold float64
}

// NewFusion opens the detectors needed by cfg. The fallback loader is only
// consulted in group mode; a nil loader or a loading error disables the
// fallback pass without failing.
func NewFusion(cfg Config, detectors DetectorFactory, fallback FallbackLoader, log logrus.FieldLogger) (*Fusion, error) {
	if detectors == nil {
		return nil, errors.New("no detector factory")
	}
	if log == nil {
		log = logger.Discard()
	}

	f := &Fusion{
		cfg:            cfg,
		log:            log,
		Padding:        geometry.DefaultPadding,
		DedupThreshold: geometry.DefaultDedupThreshold,
	}

	primary, err := detectors(cfg.Range)
	if err != nil {
		return nil, fmt.Errorf("open primary detector: %w", err)
	}
	f.primary = primary

	if !cfg.GroupMode {
		return f, nil
	}

	secondary, err := detectors(cfg.Range.Complement())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open secondary detector: %w", err)
	}
	f.secondary = secondary

	if fallback != nil {
		cascade, err := fallback()
		if err != nil {
			log.WithError(err).Debug("cascade fallback unavailable, continuing without it")
		} else {
			f.fallback = cascade
		}
	}
	return f, nil
}

// HasFallback reports whether the cascade fallback pass is active.
func (f *Fusion) HasFallback() bool {
	return f.fallback != nil
}

// Detect returns the fused boxes for img in pixel coordinates relative to
// img.Bounds().Min.
func (f *Fusion) Detect(img image.Image) ([]geometry.Box, error) {
	width, height := img.Bounds().Dx(), img.Bounds().Dy()

	raw, err := collect(f.primary, img, f.cfg.Confidence)
	if err != nil {
		return nil, fmt.Errorf("primary pass: %w", err)
	}

	if f.secondary != nil {
		more, err := collect(f.secondary, img, f.cfg.SecondaryConfidence())
		if err != nil {
			return nil, fmt.Errorf("secondary pass: %w", err)
		}
		raw = append(raw, more...)
	}

	if f.fallback != nil {
		minSide := max(20, int(float64(min(width, height))*0.02))
		rects, err := f.fallback.DetectMultiScale(img, minSide)
		if err != nil {
			return nil, fmt.Errorf("cascade pass: %w", err)
		}
		for _, r := range rects {
			if b := geometry.FromRect(r); !b.Empty() {
				raw = append(raw, b)
			}
		}
	}

	padded := make([]geometry.Box, 0, len(raw))
	for _, b := range raw {
		p := geometry.Pad(b, width, height, f.Padding)
		if p.Empty() {
			continue
		}
		padded = append(padded, p)
	}
	return geometry.Deduplicate(padded, f.DedupThreshold), nil
}

// Close releases every detection pass. It is safe to call more than once.
func (f *Fusion) Close() error {
	var errs []error
	if f.primary != nil {
		errs = append(errs, f.primary.Close())
		f.primary = nil
	}
	if f.secondary != nil {
		errs = append(errs, f.secondary.Close())
		f.secondary = nil
	}
	if f.fallback != nil {
		errs = append(errs, f.fallback.Close())
		f.fallback = nil
	}
	return errors.Join(errs...)
}

// collect runs one detector and converts its relative boxes to pixels,
// dropping degenerate detections.
func collect(d Detector, img image.Image, confidence float64) ([]geometry.Box, error) {
	if d == nil {
		return nil, errClosed
	}
	rel, err := d.Detect(img, confidence)
	if err != nil {
		return nil, err
	}

	width, height := float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	boxes := make([]geometry.Box, 0, len(rel))
	for _, rb := range rel {
		b := geometry.Box{
			X:      int(rb.XMin * width),
			Y:      int(rb.YMin * height),
			Width:  int(rb.Width * width),
			Height: int(rb.Height * height),
		}
		if b.Empty() {
			continue
		}
		boxes = append(boxes, b)
	}
	return boxes, nil
}
