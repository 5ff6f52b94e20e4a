package facebluring

import (
	"fmt"
	"image"
	"strings"
)

// RangeMode selects the face-to-camera distance a detector is tuned for.
type RangeMode int

const (
	// ShortRange targets faces close to the camera, roughly within 2m.
	ShortRange RangeMode = iota
	// FullRange targets smaller faces further away, roughly 2m to 5m.
	FullRange
)

// Complement returns the other range mode.
func (m RangeMode) Complement() RangeMode {
	if m == ShortRange {
		return FullRange
	}
	return ShortRange
}

func (m RangeMode) String() string {
	switch m {
	case ShortRange:
		return "short"
	case FullRange:
		return "full"
	default:
		return fmt.Sprintf("RangeMode(%d)", int(m))
	}
}

// ParseRangeMode accepts "short" or "full" (case-insensitive).
func ParseRangeMode(s string) (RangeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short", "short-range", "0":
		return ShortRange, nil
	case "full", "full-range", "1":
		return FullRange, nil
	}
	return ShortRange, fmt.Errorf("unknown range mode %q: want short or full", s)
}

// RelativeBox is a detection expressed as fractions of the image size.
type RelativeBox struct {
	XMin   float64
	YMin   float64
	Width  float64
	Height float64
}

// Detector is a face detection pass. Detect must only report faces scoring
// at least confidence. Implementations are not safe for concurrent use.
type Detector interface {
	Detect(img image.Image, confidence float64) ([]RelativeBox, error)
	Close() error
}

// DetectorFactory opens a Detector tuned for the given range mode.
type DetectorFactory func(mode RangeMode) (Detector, error)

// Config controls detection for a single run.
type Config struct {
	// Confidence is the minimum detection score in [0,1] for the primary pass.
	Confidence float64
	// Range is the range mode of the primary pass.
	Range RangeMode
	// GroupMode adds a complementary-range pass and the small-face cascade.
	GroupMode bool
	// DebugOverlay draws detected boxes on previews. It never affects output.
	DebugOverlay bool
}

// DefaultConfig mirrors the defaults offered to users.
func DefaultConfig() Config {
	return Config{
		Confidence: 0.5,
		Range:      ShortRange,
		GroupMode:  true,
	}
}

// SecondaryConfidence is the relaxed threshold used by the group mode pass.
func (c Config) SecondaryConfidence() float64 {
	return max(0.2, c.Confidence-0.15)
}
