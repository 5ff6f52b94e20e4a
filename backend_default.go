//go:build !gocv

package main

import (
	"github.com/sirupsen/logrus"

	"thaitanloi365/go-face-redact/config"
	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/media"
)

// Without OpenCV, video goes through the ffmpeg binaries and the small-face
// pass is a second pigo cascade.
func backends(cfg *config.Config, locator facebluring.ResourceLocator, log logrus.FieldLogger) (media.Backend, facebluring.FallbackLoader) {
	return media.NewFFmpeg(cfg.FFmpeg, cfg.FFprobe, log), facebluring.PigoFallback(locator)
}
