package pipeline

import (
	"fmt"
	"image"
)

// EventType tags an Event.
type EventType int

const (
	EventProgress EventType = iota
	EventPreview
	EventCompleted
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventPreview:
		return "preview"
	case EventCompleted:
		return "completed"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is a notification from a run to its caller. Only the field matching
// Type is set.
type Event struct {
	Type EventType
	// Percent is the progress in [0,100].
	Percent int
	// Preview is a copy of a processed frame, owned by the receiver.
	Preview image.Image
	// Output is the final output path.
	Output string
	// Err is the reason a run failed.
	Err error
}

func (e Event) String() string {
	switch e.Type {
	case EventProgress:
		return fmt.Sprintf("progress %d%%", e.Percent)
	case EventPreview:
		return fmt.Sprintf("preview %v", e.Preview.Bounds().Size())
	case EventCompleted:
		return "completed " + e.Output
	case EventError:
		return "error: " + e.Err.Error()
	}
	return e.Type.String()
}
