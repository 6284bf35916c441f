package cwidget

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"annotator/processing/classes"
)

// ClassList shows one checkbox per detected class. It is rebuilt only through
// SetClasses, so toggles made by the user survive between frames.
type ClassList struct {
	widget.BaseWidget

	box    *fyne.Container
	empty  *widget.Label
	checks map[string]*widget.Check

	OnToggled func(class string, visible bool)
}

func NewClassList(onToggled func(class string, visible bool)) *ClassList {
	l := &ClassList{
		box:       container.NewVBox(),
		empty:     widget.NewLabel("No classes detected yet"),
		checks:    make(map[string]*widget.Check),
		OnToggled: onToggled,
	}
	l.empty.TextStyle = fyne.TextStyle{Italic: true}
	l.box.Add(l.empty)

	l.ExtendBaseWidget(l)
	return l
}

// SetClasses replaces the checkboxes with the given states, in order.
func (l *ClassList) SetClasses(states []classes.ClassState) {
	l.box.Objects = nil
	l.checks = make(map[string]*widget.Check, len(states))

	for _, st := range states {
		class := st.Class

		check := widget.NewCheck(class, nil)
		check.Checked = st.Visible
		check.OnChanged = func(on bool) {
			if l.OnToggled != nil {
				l.OnToggled(class, on)
			}
		}

		l.checks[class] = check
		l.box.Add(check)
	}

	if len(states) == 0 {
		l.box.Add(l.empty)
	}
	l.box.Refresh()
}

func (l *ClassList) Len() int {
	return len(l.checks)
}

func (l *ClassList) Check(class string) *widget.Check {
	return l.checks[class]
}

func (l *ClassList) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewVScroll(l.box))
}
