package capture

import (
	"fmt"

	"go.uber.org/zap"

	"annotator/internal/config"
)

// NewStreamer builds an unstarted streamer for the configured source.
func NewStreamer(cfg *config.Config, log *zap.Logger) (VideoStreamer, error) {
	switch cfg.GetSource() {
	case config.SourceWebcam:
		return NewFFmpegWebcam(cfg.GetDeviceID(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight(), log), nil
	case config.SourceLocal:
		return NewLocalStreamer(cfg.GetLocalPath(), cfg.GetFPS(), cfg.GetWidth(), cfg.GetHeight(), true, log)
	default:
		return nil, fmt.Errorf("unknown source: %s", cfg.GetSource())
	}
}

// NewOpener returns an Opener reading the configuration at open time, so
// settings changed in the UI apply to the next start.
func NewOpener(cfg *config.Config, log *zap.Logger) Opener {
	return StartWith(func() (VideoStreamer, error) {
		return NewStreamer(cfg, log)
	})
}
