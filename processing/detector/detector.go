// Package detector adapts object detection backends to models.DetectionSet.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"annotator/internal/models"
)

// ErrInvalidInput is returned for empty, missing or undecodable images.
var ErrInvalidInput = errors.New("invalid input image")

// Detector runs a model on one image. Implementations keep the model loaded
// between calls and do not retry failed calls.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (models.DetectionSet, error)
	Close() error
}

// CheckImage returns ErrInvalidInput for nil or zero-sized images.
func CheckImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidInput)
	}
	if img.Bounds().Empty() {
		return fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	return nil
}

// OpenImage decodes an image file, honouring EXIF orientation.
func OpenImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}
	return img, nil
}

// DetectFile decodes the image at path and runs d on it. The decoded image is
// returned so callers can annotate it.
func DetectFile(ctx context.Context, d Detector, path string) (image.Image, models.DetectionSet, error) {
	img, err := OpenImage(path)
	if err != nil {
		return nil, nil, err
	}

	set, err := d.Detect(ctx, img)
	if err != nil {
		return img, nil, err
	}
	return img, set, nil
}

// FilterConfidence drops detections below min. The input is not modified.
func FilterConfidence(set models.DetectionSet, min float32) models.DetectionSet {
	if min <= 0 {
		return set
	}

	out := make(models.DetectionSet, 0, len(set))
	for _, d := range set {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}
	return out
}
