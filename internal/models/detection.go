package models

import "image"

// Box is a bounding box in pixel coordinates of the source image.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is a single model output. Values are never modified after the
// detector produces them.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Box     `json:"box"`
}

// DetectionSet holds the detections for one image or frame, in detector order.
type DetectionSet []Detection

// Classes returns the distinct class names in the order they first appear.
func (s DetectionSet) Classes() []string {
	seen := make(map[string]struct{}, len(s))
	var names []string

	for _, d := range s {
		if _, ok := seen[d.Class]; ok {
			continue
		}
		seen[d.Class] = struct{}{}
		names = append(names, d.Class)
	}

	return names
}
