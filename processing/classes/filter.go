// Package classes decides which detected classes are shown.
package classes

import "annotator/internal/models"

// Selector reports whether detections of a class should be kept.
type Selector interface {
	Visible(class string) bool
}

type allClasses struct{}

func (allClasses) Visible(string) bool { return true }

// All keeps every detection. Filter returns its input unchanged for it.
var All Selector = allClasses{}

// ClassSet is a fixed set of visible class names. An empty set hides
// everything.
type ClassSet map[string]struct{}

func NewClassSet(names ...string) ClassSet {
	s := make(ClassSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

func (s ClassSet) Visible(class string) bool {
	_, ok := s[class]
	return ok
}

// Filter returns the detections whose class is visible, in input order.
// The input is never modified. A nil selector behaves like All.
func Filter(set models.DetectionSet, sel Selector) models.DetectionSet {
	if sel == nil || sel == All {
		return set
	}

	out := make(models.DetectionSet, 0, len(set))
	for _, d := range set {
		if sel.Visible(d.Class) {
			out = append(out, d)
		}
	}
	return out
}
