package cwidget

import (
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/require"

	"annotator/processing/classes"
)

func TestIntInput(t *testing.T) {
	test.NewTempApp(t)

	var got int
	in := NewIntInput("FPS", "Enter integer", 24, func(i int) { got = i })

	in.SetText("30")
	require.Equal(t, 30, got)
	require.Equal(t, "FPS: 30", in.labelWidget.Text)
	require.True(t, in.errorWidget.Hidden)

	in.SetText("0")
	require.Equal(t, 30, got)
	require.False(t, in.errorWidget.Hidden)

	in.SetText("abc")
	require.Equal(t, "not an integer", in.errorWidget.Text)

	in.SetText("")
	require.Equal(t, 24, got)
	require.True(t, in.errorWidget.Hidden)
}

func TestFloatInput(t *testing.T) {
	test.NewTempApp(t)

	var got float32
	in := NewFloatInput("Confidence", "0..1", 0.25, 0, 1, func(f float32) { got = f })
	require.Equal(t, "Confidence: 0.25", in.labelWidget.Text)

	in.SetText("0.6")
	require.InDelta(t, 0.6, got, 1e-6)

	in.SetText("1.5")
	require.InDelta(t, 0.6, got, 1e-6)
	require.Equal(t, "must be between 0.00 and 1.00", in.errorWidget.Text)
}

func TestClassListToggles(t *testing.T) {
	test.NewTempApp(t)

	vis := classes.NewVisibility()
	vis.Reconcile([]string{"cat", "dog"})

	l := NewClassList(vis.Set)
	l.SetClasses(vis.Entries())
	require.Equal(t, 2, l.Len())
	require.True(t, l.Check("dog").Checked)

	test.Tap(l.Check("dog"))
	require.False(t, vis.Visible("dog"))
	require.True(t, vis.Visible("cat"))

	// rebuilding from the mapping keeps the user's choice
	vis.Reconcile([]string{"cat", "dog", "bird"})
	l.SetClasses(vis.Entries())
	require.Equal(t, 3, l.Len())
	require.False(t, l.Check("dog").Checked)
	require.True(t, l.Check("bird").Checked)
}

func TestClassListEmpty(t *testing.T) {
	test.NewTempApp(t)

	l := NewClassList(nil)
	l.SetClasses(nil)
	require.Zero(t, l.Len())
	require.Len(t, l.box.Objects, 1)
}
