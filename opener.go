//go:build !gocv

package main

import (
	"go.uber.org/zap"

	"annotator/internal/config"
	"annotator/processing/capture"
)

func sourceOpener(cfg *config.Config, log *zap.Logger) capture.Opener {
	return capture.NewOpener(cfg, log)
}
