//go:build gocv

package main

import (
	"github.com/sirupsen/logrus"

	"thaitanloi365/go-face-redact/config"
	"thaitanloi365/go-face-redact/facebluring"
	"thaitanloi365/go-face-redact/media"
)

func backends(cfg *config.Config, locator facebluring.ResourceLocator, log logrus.FieldLogger) (media.Backend, facebluring.FallbackLoader) {
	return media.NewGocvBackend(), facebluring.HaarFallback(locator)
}
