package classes

import "sync"

// ClassState is one row of the checkbox list.
type ClassState struct {
	Class   string
	Visible bool
}

// Visibility maps class names to a visible flag, keeping first-seen order.
// Keys are only ever added; an existing flag is only changed through Set.
// It is safe for concurrent use.
type Visibility struct {
	mu      sync.RWMutex
	order   []string
	visible map[string]bool
}

func NewVisibility() *Visibility {
	return &Visibility{visible: make(map[string]bool)}
}

// Reconcile merges the observed class names into the mapping. New classes are
// appended as visible; known classes keep their current flag. The result
// reports whether the key set grew, which is when the checkbox list needs to
// be rebuilt.
func (v *Visibility) Reconcile(observed []string) (changed bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, class := range observed {
		if _, ok := v.visible[class]; ok {
			continue
		}
		v.visible[class] = true
		v.order = append(v.order, class)
		changed = true
	}
	return changed
}

// Set changes the flag of a class. Unknown classes are added, so a choice
// made before a class is first detected is not lost.
func (v *Visibility) Set(class string, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.visible[class]; !ok {
		v.order = append(v.order, class)
	}
	v.visible[class] = visible
}

// Visible reports the flag for class. Classes that were never seen are
// visible.
func (v *Visibility) Visible(class string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	vis, ok := v.visible[class]
	return !ok || vis
}

func (v *Visibility) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.order)
}

// Entries returns a copy of the mapping in first-seen order.
func (v *Visibility) Entries() []ClassState {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]ClassState, len(v.order))
	for i, class := range v.order {
		out[i] = ClassState{Class: class, Visible: v.visible[class]}
	}
	return out
}

// VisibleSet snapshots the visible classes, for use with Filter.
func (v *Visibility) VisibleSet() ClassSet {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := make(ClassSet, len(v.order))
	for class, vis := range v.visible {
		if vis {
			s[class] = struct{}{}
		}
	}
	return s
}
