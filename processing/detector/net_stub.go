//go:build !gocv

package detector

import (
	"errors"

	"go.uber.org/zap"

	"annotator/internal/config"
)

func openNet(config.DetectorConfig, ClassNames, *zap.Logger) (Detector, error) {
	return nil, errors.New("opencv backend requires a build with -tags gocv")
}
