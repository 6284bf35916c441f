package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"annotator/processing/render"
)

// display owns the surface currently on screen. It is only touched on the UI
// thread.
type display struct {
	current *render.Surface

	image *canvas.Image
	text  *widget.Label
}

func newDisplay(width, height int) *display {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(float32(width), float32(height)))

	text := widget.NewLabel(render.NoDetections)
	text.Wrapping = fyne.TextWrapWord

	return &display{image: img, text: text}
}

// show replaces the displayed surface. The previous one is released only
// once the new one is set.
func (d *display) show(s *render.Surface) {
	d.current = s
	d.image.Image = s.Image
	d.image.Refresh()
	d.text.SetText(s.Text)
}

// clear drops the surface left over from the previous source.
func (d *display) clear() {
	d.current = nil
	d.image.Image = nil
	d.image.Refresh()
	d.text.SetText(render.NoDetections)
}

func (d *display) content() fyne.CanvasObject {
	return container.NewBorder(nil, nil, nil, container.NewVScroll(d.text), d.image)
}
