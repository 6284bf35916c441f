// Package render turns detections into pixels and text for display.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"annotator/internal/models"
)

const NoDetections = "No detections."

var (
	boxColor  = color.RGBA{0, 255, 0, 255}
	textColor = color.RGBA{0, 0, 0, 255}
)

// Surface is one displayable result: the scaled, annotated image and the
// detection listing shown next to it.
type Surface struct {
	Image image.Image
	Text  string
}

// DetectionText lists detections as "class: confidence", one per line, in
// detection order.
func DetectionText(set models.DetectionSet) string {
	if len(set) == 0 {
		return NoDetections
	}

	var sb strings.Builder
	for i, d := range set {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %.2f", d.Class, d.Confidence)
	}
	return sb.String()
}

// Annotate copies img and draws a box and a "class conf" tag for every
// detection.
func Annotate(img image.Image, set models.DetectionSet) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	for _, d := range set {
		drawRect(out, d.Box, boxColor)
		drawLabel(out, fmt.Sprintf("%s %.2f", d.Class, d.Confidence), d.Box.X1, d.Box.Y1)
	}
	return out
}

// Mirror flips the frame horizontally.
func Mirror(img image.Image) image.Image {
	return imaging.FlipH(img)
}

// Fit scales img with a Lanczos filter so it fits inside width x height,
// keeping the aspect ratio. Non-positive targets return img unchanged.
func Fit(img image.Image, width, height int) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return img
	}

	w, h := FitSize(b.Dx(), b.Dy(), width, height)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

// FitSize returns the largest size with the aspect ratio of srcW x srcH that
// fits in maxW x maxH.
func FitSize(srcW, srcH, maxW, maxH int) (int, int) {
	if srcW*maxH > srcH*maxW {
		h := srcH * maxW / srcW
		return maxW, max(h, 1)
	}
	w := srcW * maxH / srcH
	return max(w, 1), maxH
}

func drawRect(img *image.RGBA, box models.Box, col color.Color) {
	thickness := 2
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := box.X1; x <= box.X2; x++ {
			setPixel(x, box.Y1+t)
			setPixel(x, box.Y2-t)
		}
		for y := box.Y1; y <= box.Y2; y++ {
			setPixel(box.X1+t, y)
			setPixel(box.X2-t, y)
		}
	}
}

// drawLabel draws text on a filled tag sitting on top of the box corner, or
// just inside the box when there is no room above it.
func drawLabel(img *image.RGBA, label string, x, y int) {
	face := basicfont.Face7x13
	bounds := img.Bounds()

	textWidth := font.MeasureString(face, label).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	padding := 2

	tag := image.Rect(x, y-textHeight-2*padding, x+textWidth+2*padding, y)
	if tag.Min.Y < bounds.Min.Y {
		tag = tag.Add(image.Pt(0, tag.Dy()))
	}
	if tag.Max.X > bounds.Max.X {
		tag = tag.Sub(image.Pt(tag.Max.X-bounds.Max.X, 0))
	}

	draw.Draw(img, tag.Intersect(bounds), image.NewUniform(boxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(tag.Min.X + padding),
			Y: fixed.I(tag.Max.Y - padding - face.Descent),
		},
	}
	d.DrawString(label)
}
