//go:build gocv

package capture

import (
	"go.uber.org/zap"

	"annotator/internal/config"
)

// NewCVOpener opens the configured webcam through OpenCV.
func NewCVOpener(cfg *config.Config, log *zap.Logger) Opener {
	return StartWith(func() (VideoStreamer, error) {
		return NewCVCamera(cfg.GetDeviceID(), cfg.GetWidth(), cfg.GetHeight(), log), nil
	})
}
