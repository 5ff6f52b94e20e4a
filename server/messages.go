package server

import (
	"bytes"
	"encoding/base64"

	"github.com/disintegration/imaging"

	"thaitanloi365/go-face-redact/pipeline"
)

// Message is the JSON form of a pipeline.Event sent to viewers.
type Message struct {
	Type    string `json:"type"`
	Percent int    `json:"percent,omitempty"`
	// Preview is a base64 encoded PNG.
	Preview string `json:"preview,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newMessage(e pipeline.Event) (Message, error) {
	m := Message{Type: e.Type.String()}
	switch e.Type {
	case pipeline.EventProgress:
		m.Percent = e.Percent
	case pipeline.EventPreview:
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, e.Preview, imaging.PNG); err != nil {
			return m, err
		}
		m.Preview = base64.StdEncoding.EncodeToString(buf.Bytes())
	case pipeline.EventCompleted:
		m.Output = e.Output
	case pipeline.EventError:
		m.Error = e.Err.Error()
	}
	return m, nil
}

// RunStatus describes the current or last run.
type RunStatus struct {
	Input     string `json:"input"`
	Output    string `json:"output"`
	State     string `json:"state"`
	Percent   int    `json:"percent"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

func statusOf(run *pipeline.Run) RunStatus {
	processed, total := run.Frames()
	st := RunStatus{
		Input:     run.Input(),
		Output:    run.Output(),
		State:     run.State().String(),
		Percent:   run.Percent(),
		Processed: processed,
		Total:     total,
	}
	select {
	case <-run.Done():
		if _, err := run.Wait(); err != nil {
			st.Error = err.Error()
		}
	default:
	}
	return st
}
