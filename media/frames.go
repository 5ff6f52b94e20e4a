package media

import (
	"context"
	"image"
)

// Metadata describes a video stream. Width and Height are the size of the
// decoded frames, after any display rotation.
type Metadata struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
	// Rotation is the display rotation in degrees, in [0,360).
	Rotation int
}

// Normalized floors FPS and FrameCount at 1 so they are safe to divide by.
func (m Metadata) Normalized() Metadata {
	m.FPS = max(1, m.FPS)
	m.FrameCount = max(1, m.FrameCount)
	return m
}

// FrameSource yields decoded frames in stream order. Read returns io.EOF
// after the last frame.
type FrameSource interface {
	Metadata() Metadata
	Read() (*image.NRGBA, error)
	Close() error
}

// FrameSink encodes frames in the order they are written.
type FrameSink interface {
	Write(frame *image.NRGBA) error
	Close() error
}

// Backend opens frame sources and sinks.
type Backend interface {
	OpenSource(ctx context.Context, path string) (FrameSource, error)
	CreateSink(ctx context.Context, path string, md Metadata) (FrameSink, error)
}
