// Package audio puts the original soundtrack back onto a redacted video.
//
// Reattachment never fails a run because of muxing: when the muxer is
// missing or errors out, the silent video is promoted to the output path.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Muxer combines a video-only file with the audio of another file.
type Muxer interface {
	Available(ctx context.Context) error
	Mux(ctx context.Context, video, original, output string) error
}

// Outcome tells how the final output was produced.
type Outcome int

const (
	// Muxed means output carries the original audio.
	Muxed Outcome = iota
	// SilentFallback means the silent video was promoted to output.
	SilentFallback
)

func (o Outcome) String() string {
	if o == Muxed {
		return "muxed"
	}
	return "silent-fallback"
}

// Reattacher runs a Muxer with the silent fallback.
type Reattacher struct {
	Muxer Muxer
	Log   logrus.FieldLogger
}

// Reattach produces output from the silent video and the original input.
// The silent file is gone afterwards in every successful case. The returned
// error is non-nil only when even the fallback could not place a file at
// output.
func (r *Reattacher) Reattach(ctx context.Context, silent, original, output string) (Outcome, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{"video": silent, "output": output})

	err := r.mux(ctx, silent, original, output)
	if err == nil {
		if err := os.Remove(silent); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("could not remove intermediate video")
		}
		log.Info("audio reattached")
		return Muxed, nil
	}

	log.WithError(err).Warn("audio reattachment unavailable, keeping silent video")
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not remove stale output")
	}
	if err := os.Rename(silent, output); err != nil {
		return SilentFallback, fmt.Errorf("promote silent video: %w", err)
	}
	return SilentFallback, nil
}

func (r *Reattacher) mux(ctx context.Context, silent, original, output string) error {
	if r.Muxer == nil {
		return errors.New("no muxer configured")
	}
	if err := r.Muxer.Available(ctx); err != nil {
		return err
	}
	return r.Muxer.Mux(ctx, silent, original, output)
}
