package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"thaitanloi365/go-face-redact/audio"
	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/media"
)

// Share of the progress bar used by the frame loop; the rest belongs to
// audio reattachment.
const (
	framesProgress = 80
	muxProgress    = 90
)

// videoResources are the handles a video run holds while frames flow.
// release runs from a defer so a panic in the frame loop still stops the
// codec processes and removes the temp file.
type videoResources struct {
	source media.FrameSource
	sink   media.FrameSink
	fusion *facebluring.Fusion
	temp   string

	released  bool
	committed bool // temp is complete and handed to reattachment
}

// close releases every open handle once. The sink error is returned apart
// because it decides whether the temp video is complete.
func (v *videoResources) close() (sinkErr, otherErr error) {
	if v.released {
		return nil, nil
	}
	v.released = true

	var errs []error
	if v.fusion != nil {
		errs = append(errs, v.fusion.Close())
	}
	if v.source != nil {
		errs = append(errs, v.source.Close())
	}
	if v.sink != nil {
		sinkErr = v.sink.Close()
	}
	return sinkErr, errors.Join(errs...)
}

// release closes whatever is still open and deletes the temp video unless
// it was committed.
func (v *videoResources) release(log logrus.FieldLogger) {
	v.close()
	if v.committed || v.temp == "" {
		return
	}
	if err := os.Remove(v.temp); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not remove intermediate video")
	}
}

func (r *Run) processVideo(p *Pipeline) error {
	if p.Media == nil {
		return fmt.Errorf("%w: no video backend", ErrProcessing)
	}

	res := &videoResources{}
	defer res.release(r.log)

	source, err := p.Media.OpenSource(r.ctx, r.params.Input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	res.source = source
	md := source.Metadata().Normalized()
	r.total.Store(int64(md.FrameCount))

	res.temp = TempPath(r.params.Output)
	sink, err := p.Media.CreateSink(r.ctx, res.temp, md)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	res.sink = sink

	fusion, err := r.openFusion(p)
	if err != nil {
		return err
	}
	res.fusion = fusion

	r.setState(StateProcessing)
	if err := r.frameLoop(fusion, source, sink, p.Preview); err != nil {
		return err
	}

	sinkErr, closeErr := res.close()
	if r.Cancelled() {
		return ErrCancelled
	}
	if sinkErr != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, sinkErr)
	}
	if closeErr != nil {
		r.log.WithError(closeErr).Warn("error releasing video resources")
	}
	res.committed = true

	// The source may deliver fewer frames than its metadata promised.
	r.total.Store(r.processed.Load())

	r.progress(muxProgress)
	reattacher := &audio.Reattacher{Muxer: p.Muxer, Log: r.log}
	outcome, err := reattacher.Reattach(context.WithoutCancel(r.ctx), res.temp, r.params.Input, r.params.Output)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	r.log.WithField("audio", outcome).Debug("video finalized")
	r.progress(100)
	return nil
}

// frameLoop processes frames until the source ends, a frame fails, or the
// run is cancelled. Cancellation is checked once per frame.
func (r *Run) frameLoop(fusion *facebluring.Fusion, source media.FrameSource, sink media.FrameSink, opts facebluring.PreviewOptions) error {
	var redactor facebluring.Redactor
	previewSent := false

	for {
		if r.Cancelled() {
			return ErrCancelled
		}

		frame, err := source.Read()
		if errors.Is(err, io.EOF) {
			if r.processed.Load() == 0 {
				return fmt.Errorf("%w: no frames decoded", ErrSourceOpen)
			}
			return nil
		}
		if err != nil {
			return r.frameError(fmt.Errorf("%w: %w", ErrProcessing, err))
		}

		boxes, err := fusion.Detect(frame)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrProcessing, err)
		}
		redactor.Redact(frame, boxes)

		var preview image.Image
		if !previewSent {
			preview = r.renderPreview(frame, boxes, opts)
		}

		// The sink owns frame from here on.
		if err := sink.Write(frame); err != nil {
			return r.frameError(fmt.Errorf("%w: %w", ErrSinkWrite, err))
		}

		if preview != nil {
			r.sendPreview(preview)
			previewSent = true
		}

		// total is raised first so readers of Frames never see
		// processed > total.
		n := r.processed.Load() + 1
		if n > r.total.Load() {
			r.total.Store(n)
		}
		r.processed.Store(n)
		r.progress(int(n * framesProgress / r.total.Load()))
	}
}

// frameError reports a cancellation instead of err when the failure was
// caused by the run's context being cancelled under a child process.
func (r *Run) frameError(err error) error {
	if r.Cancelled() {
		return ErrCancelled
	}
	return err
}
