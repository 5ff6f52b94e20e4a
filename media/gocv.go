//go:build gocv

package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"
)

// GocvBackend reads and writes video through OpenCV.
type GocvBackend struct {
	// Codec is the fourcc of written files.
	Codec string
}

// NewGocvBackend returns a backend writing mp4v streams.
func NewGocvBackend() *GocvBackend {
	return &GocvBackend{Codec: "mp4v"}
}

// OpenSource implements Backend.
func (g *GocvBackend) OpenSource(ctx context.Context, path string) (FrameSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open %s: capture not opened", path)
	}

	md := Metadata{
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
	}
	return &gocvSource{capture: capture, mat: gocv.NewMat(), md: md}, nil
}

// CreateSink implements Backend.
func (g *GocvBackend) CreateSink(ctx context.Context, path string, md Metadata) (FrameSink, error) {
	md = md.Normalized()
	writer, err := gocv.VideoWriterFile(path, g.Codec, md.FPS, md.Width, md.Height, true)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &gocvSink{writer: writer}, nil
}

type gocvSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	md      Metadata
}

func (s *gocvSource) Metadata() Metadata { return s.md }

func (s *gocvSource) Read() (*image.NRGBA, error) {
	if !s.capture.Read(&s.mat) || s.mat.Empty() {
		return nil, io.EOF
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return imaging.Clone(img), nil
}

func (s *gocvSource) Close() error {
	return errors.Join(s.mat.Close(), s.capture.Close())
}

type gocvSink struct {
	writer *gocv.VideoWriter
}

func (s *gocvSink) Write(frame *image.NRGBA) error {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	defer mat.Close()
	if err := s.writer.Write(mat); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *gocvSink) Close() error {
	return s.writer.Close()
}
