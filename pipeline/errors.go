package pipeline

import "errors"

var (
	// ErrUnsupportedFormat is returned for inputs whose extension is neither
	// a known image nor a known video format.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrInvalidOutput is returned when the output would overwrite the input.
	ErrInvalidOutput = errors.New("invalid output path")
	// ErrSourceOpen is returned when the input cannot be read.
	ErrSourceOpen = errors.New("failed to open input")
	// ErrSinkWrite is returned when output frames cannot be written.
	ErrSinkWrite = errors.New("failed to write output")
	// ErrProcessing wraps unexpected failures inside a run.
	ErrProcessing = errors.New("processing error")
	// ErrCancelled is the terminal outcome of a cancelled run. It is never
	// sent as an Error event.
	ErrCancelled = errors.New("cancelled")
)
