package pipeline

import (
	"fmt"

	"thaitanloi365/go-face-redact/facebluring"
)

func (r *Run) processImage(p *Pipeline) error {
	still, err := facebluring.LoadStill(r.params.Input)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceOpen, err)
	}
	r.total.Store(1)
	r.setState(StateProcessing)
	r.progress(15)

	fusion, err := r.openFusion(p)
	if err != nil {
		return err
	}
	defer fusion.Close()
	r.progress(40)

	boxes, err := fusion.Detect(still.Color)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProcessing, err)
	}
	facebluring.Redactor{}.Redact(still.Color, boxes)
	r.log.WithField("faces", len(boxes)).Debug("image redacted")
	r.progress(75)

	final := still.Merge()
	if err := facebluring.SaveStill(final, r.params.Output); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	r.processed.Store(1)

	r.sendPreview(r.renderPreview(final, boxes, p.Preview))
	r.progress(100)
	return nil
}
