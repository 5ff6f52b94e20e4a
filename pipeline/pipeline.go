package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"thaitanloi365/go-face-redact/audio"
	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/geometry"
	"thaitanloi365/go-face-redact/media"
)

// State is the lifecycle position of a Run.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateProcessing
	StateCancelled
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateProcessing:
		return "processing"
	case StateCancelled:
		return "cancelled"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s >= StateCancelled
}

// eventBuffer bounds how far the worker may run ahead of the consumer.
const eventBuffer = 64

// Pipeline holds the collaborators shared by runs.
type Pipeline struct {
	Detectors facebluring.DetectorFactory
	Fallback  facebluring.FallbackLoader
	Media     media.Backend
	Muxer     audio.Muxer
	Preview   facebluring.PreviewOptions
	Log       logrus.FieldLogger
}

// Params are the inputs of a single run.
type Params struct {
	Input string
	// Output defaults to OutputPath(Input).
	Output    string
	Detection facebluring.Config
}

// Run is one execution of the pipeline.
type Run struct {
	params Params
	kind   Kind
	ctx    context.Context
	log    logrus.FieldLogger

	events chan Event
	done   chan struct{}

	cancelled atomic.Bool
	state     atomic.Int32
	processed atomic.Int64
	total     atomic.Int64
	percent   atomic.Int32

	lastPercent int
	err         error
}

// Start launches a run in a new goroutine.
func (p *Pipeline) Start(ctx context.Context, params Params) *Run {
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if params.Output == "" {
		// Unsupported inputs keep an empty output and fail in the worker.
		params.Output, _ = OutputPath(params.Input)
	}

	r := &Run{
		params:      params,
		ctx:         ctx,
		events:      make(chan Event, eventBuffer),
		done:        make(chan struct{}),
		lastPercent: -1,
	}
	r.log = log.WithField("input", params.Input)
	r.percent.Store(-1)

	go r.execute(p)
	return r
}

// Cancel asks the run to stop at the next frame boundary.
func (r *Run) Cancel() {
	r.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (r *Run) Cancelled() bool {
	return r.cancelled.Load() || r.ctx.Err() != nil
}

// Events returns the notification channel. It is closed after the last event.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Done is closed when the run has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run ends and returns its terminal state and error.
// A cancelled run returns ErrCancelled.
func (r *Run) Wait() (State, error) {
	<-r.done
	return r.State(), r.err
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	return State(r.state.Load())
}

// Frames returns how many frames were processed out of the expected total.
func (r *Run) Frames() (processed, total int) {
	return int(r.processed.Load()), int(r.total.Load())
}

// Percent returns the last reported progress, or -1 before the first one.
func (r *Run) Percent() int {
	return int(r.percent.Load())
}

// Input returns the input path.
func (r *Run) Input() string {
	return r.params.Input
}

// Output returns the output path.
func (r *Run) Output() string {
	return r.params.Output
}

func (r *Run) execute(p *Pipeline) {
	defer close(r.done)
	defer close(r.events)

	r.setState(StateInitializing)
	err := r.safeProcess(p)

	switch {
	case err == nil:
		r.setState(StateCompleted)
		r.log.WithField("output", r.params.Output).Info("redaction completed")
		r.events <- Event{Type: EventCompleted, Output: r.params.Output}
	case errors.Is(err, ErrCancelled):
		r.err = err
		r.setState(StateCancelled)
		r.log.Info("redaction cancelled")
	default:
		r.err = err
		r.setState(StateFailed)
		r.log.WithError(err).Error("redaction failed")
		r.events <- Event{Type: EventError, Err: err}
	}
}

// safeProcess turns panics from collaborators into ErrProcessing.
func (r *Run) safeProcess(p *Pipeline) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrProcessing, rec)
		}
	}()
	return r.process(p)
}

func (r *Run) process(p *Pipeline) error {
	kind, err := Classify(r.params.Input)
	if err != nil {
		return err
	}
	r.kind = kind

	if sameFile(r.params.Input, r.params.Output) {
		return fmt.Errorf("%w: output would overwrite %s", ErrInvalidOutput, r.params.Input)
	}

	cfg := r.params.Detection
	if cfg.Confidence < 0 || cfg.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrProcessing, cfg.Confidence)
	}
	if p.Detectors == nil {
		return fmt.Errorf("%w: no detector factory", ErrProcessing)
	}

	r.log = r.log.WithFields(logrus.Fields{
		"output": r.params.Output,
		"kind":   kind,
		"range":  cfg.Range,
		"group":  cfg.GroupMode,
	})
	r.log.Info("redaction started")

	if kind == KindVideo {
		return r.processVideo(p)
	}
	return r.processImage(p)
}

func (r *Run) openFusion(p *Pipeline) (*facebluring.Fusion, error) {
	fusion, err := facebluring.NewFusion(r.params.Detection, p.Detectors, p.Fallback, r.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProcessing, err)
	}
	return fusion, nil
}

func (r *Run) setState(s State) {
	r.state.Store(int32(s))
}

// progress emits percent unless it would go backwards or repeat.
func (r *Run) progress(percent int) {
	percent = min(100, max(0, percent))
	if percent <= r.lastPercent {
		return
	}
	r.lastPercent = percent
	r.percent.Store(int32(percent))
	r.events <- Event{Type: EventProgress, Percent: percent}
}

// renderPreview copies frame for the caller, outlining boxes in debug mode.
func (r *Run) renderPreview(frame image.Image, boxes []geometry.Box, opts facebluring.PreviewOptions) image.Image {
	if !r.params.Detection.DebugOverlay {
		boxes = nil
	}
	return facebluring.Preview(frame, boxes, opts)
}

func (r *Run) sendPreview(preview image.Image) {
	r.events <- Event{Type: EventPreview, Preview: preview}
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
