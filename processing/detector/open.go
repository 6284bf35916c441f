package detector

import (
	"fmt"

	"go.uber.org/zap"

	"annotator/internal/config"
)

// Open builds the detector selected by cfg.Backend. Class names are loaded
// from cfg.ClassesPath when set.
func Open(cfg config.DetectorConfig, log *zap.Logger) (Detector, error) {
	var names ClassNames
	if cfg.ClassesPath != "" {
		n, err := LoadClassNames(cfg.ClassesPath)
		if err != nil {
			return nil, fmt.Errorf("load class names: %w", err)
		}
		names = n
	}

	switch cfg.Backend {
	case "", config.BackendRemote:
		d := NewRemoteDetector(cfg.URL, names, log)
		d.SetMinConfidence(cfg.Confidence)
		return d, nil
	case config.BackendOpenCV:
		return openNet(cfg, names, log)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}
