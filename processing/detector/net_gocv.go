//go:build gocv

package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"annotator/internal/config"
	"annotator/internal/models"
)

// NetDetector runs an SSD-style network locally through OpenCV's DNN module.
// Only built with -tags gocv.
type NetDetector struct {
	mu    sync.Mutex
	net   gocv.Net
	names ClassNames
	log   *zap.Logger

	minConfidence float32
	inputSize     image.Point
}

func NewNetDetector(modelPath, configPath string, names ClassNames, minConfidence float32, log *zap.Logger) (*NetDetector, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return nil, fmt.Errorf("model config file: %w", err)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, err
	}

	log.Info("detection network loaded", zap.String("model", modelPath))

	return &NetDetector{
		net:           net,
		names:         names,
		log:           log,
		minConfidence: minConfidence,
		inputSize:     image.Pt(300, 300),
	}, nil
}

func (d *NetDetector) Detect(ctx context.Context, img image.Image) (models.DetectionSet, error) {
	if err := CheckImage(img); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, d.inputSize, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	bounds := img.Bounds()
	cols := float32(bounds.Dx())
	height := float32(bounds.Dy())

	var set models.DetectionSet
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence < d.minConfidence {
			continue
		}
		set = append(set, models.Detection{
			Class:      d.names.Name(int(rows.GetFloatAt(i, 1))),
			Confidence: confidence,
			Box: models.Box{
				X1: bounds.Min.X + int(rows.GetFloatAt(i, 3)*cols),
				Y1: bounds.Min.Y + int(rows.GetFloatAt(i, 4)*height),
				X2: bounds.Min.X + int(rows.GetFloatAt(i, 5)*cols),
				Y2: bounds.Min.Y + int(rows.GetFloatAt(i, 6)*height),
			},
		})
	}

	d.log.Debug("frame detected", zap.Int("objects", len(set)))
	return set, nil
}

func (d *NetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func openNet(cfg config.DetectorConfig, names ClassNames, log *zap.Logger) (Detector, error) {
	return NewNetDetector(cfg.ModelPath, cfg.ModelConfig, names, cfg.Confidence, log)
}
