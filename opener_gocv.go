//go:build gocv

package main

import (
	"go.uber.org/zap"

	"annotator/internal/config"
	"annotator/processing/capture"
)

// With OpenCV available the webcam is read through it; video files still go
// through ffmpeg.
func sourceOpener(cfg *config.Config, log *zap.Logger) capture.Opener {
	cv := capture.NewCVOpener(cfg, log)
	ff := capture.NewOpener(cfg, log)

	return func() (capture.VideoStreamer, error) {
		if cfg.GetSource() == config.SourceWebcam {
			return cv()
		}
		return ff()
	}
}
