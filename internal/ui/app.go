package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"annotator/internal/config"
	"annotator/internal/ui/cwidget"
	"annotator/processing/capture"
	"annotator/processing/classes"
	"annotator/processing/detector"
	"annotator/processing/pipeline"
	"annotator/processing/render"
)

const (
	loadingCameras = "Loading cameras..."
	noCameras      = "No cameras found"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff"}

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	loop   *pipeline.Loop
	log    *zap.Logger

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	display      *display
	classList    *cwidget.ClassList
	startButton  *widget.Button
	latencyLabel *widget.Label
	fpsLabel     *widget.Label
	statusLabel  *widget.Label
}

func CreateApp(loop *pipeline.Loop, cfg *config.Config, log *zap.Logger) *DetectApp {
	a := app.New()
	w := a.NewWindow("Object Detection")

	w.Resize(fyne.NewSize(1200, 600))

	return newDetectApp(a, w, loop, cfg, log)
}

func newDetectApp(a fyne.App, w fyne.Window, loop *pipeline.Loop, cfg *config.Config, log *zap.Logger) *DetectApp {
	return &DetectApp{
		fyneApp: a,
		mainWin: w,
		loop:    loop,
		config:  cfg,
		log:     log,
	}
}

func (a *DetectApp) Run() {
	a.build()

	go a.drainUpdates()

	a.mainWin.SetCloseIntercept(func() {
		a.loop.Stop()
		if err := a.config.SaveByDefault(); err != nil {
			a.log.Error("failed to save config", zap.Error(err))
		}
		a.fyneApp.Quit()
	})

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) build() {
	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		a.config.SetSource(config.SourceType(s))
		a.refreshSettingsUI(s)
	})

	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	w, h := a.config.GetDisplaySize()
	a.display = newDisplay(w, h)

	a.latencyLabel = widget.NewLabel(formatLatency(0))
	a.fpsLabel = widget.NewLabel(formatFPS(0))
	a.statusLabel = widget.NewLabel("")
	a.statusLabel.Importance = widget.DangerImportance
	a.statusLabel.Truncation = fyne.TextTruncateEllipsis

	videoContainer := container.NewBorder(
		container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.latencyLabel),
		a.statusLabel, nil, nil,
		a.display.content(),
	)

	a.setupConfigSettings()

	a.classList = cwidget.NewClassList(a.loop.Visibility().Set)

	a.startButton = widget.NewButtonWithIcon("Start Camera", theme.MediaPlayIcon(), a.toggleCapture)
	uploadButton := widget.NewButtonWithIcon("Upload Image", theme.FileImageIcon(), a.uploadImage)

	sidebar := container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		widget.NewLabel("Source Type:"),
		sourceTypeSelect,
		widget.NewSeparator(),
		a.dynamicSettings,
		a.staticSettings,
		widget.NewSeparator(),
		a.startButton,
		uploadButton,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Classes", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	)

	split := container.NewHSplit(
		container.NewPadded(container.NewBorder(sidebar, nil, nil, nil, a.classList)),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(split)

	sourceTypeSelect.SetSelected(string(a.config.GetSource()))
}

func (a *DetectApp) toggleCapture() {
	if a.loop.State() == pipeline.Running {
		a.stopCapture()
		return
	}
	a.startCapture()
}

func (a *DetectApp) startCapture() {
	a.statusLabel.SetText("")

	if err := a.loop.Start(); err != nil {
		a.log.Warn("failed to start capture", zap.Error(err))
		dialog.ShowError(err, a.mainWin)
		a.setRunning(false)
		return
	}
	a.setRunning(true)
}

func (a *DetectApp) stopCapture() {
	a.loop.Stop()
	a.setRunning(false)
}

func (a *DetectApp) setRunning(running bool) {
	if a.startButton == nil {
		return
	}
	if running {
		a.startButton.SetText("Stop Camera")
		a.startButton.SetIcon(theme.MediaStopIcon())
	} else {
		a.startButton.SetText("Start Camera")
		a.startButton.SetIcon(theme.MediaPlayIcon())
	}
}

// drainUpdates is the only path from the capture goroutine to the widgets.
func (a *DetectApp) drainUpdates() {
	for u := range a.loop.Updates() {
		fyne.Do(func() {
			a.apply(u)
		})
	}
}

func (a *DetectApp) apply(u pipeline.Update) {
	if u.Classes != nil {
		a.classList.SetClasses(u.Classes)
	}

	if u.Stopped {
		a.setRunning(a.loop.State() == pipeline.Running)
		if u.Err != nil {
			a.statusLabel.SetText(u.Err.Error())
		}
		return
	}

	// frames left over from a stopped session must not overwrite an uploaded image
	if a.loop.State() != pipeline.Running {
		return
	}

	if u.Surface != nil {
		a.display.show(u.Surface)
	}

	a.fpsLabel.SetText(formatFPS(u.FPS))
	a.latencyLabel.SetText(formatLatency(u.Latency))

	if u.Err != nil {
		a.statusLabel.SetText(u.Err.Error())
	} else {
		a.statusLabel.SetText("")
	}
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func (a *DetectApp) uploadImage() {
	a.stopCapture()

	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()

		a.statusLabel.SetText("Detecting " + path)
		go a.detectImage(path)
	}, a.mainWin)
	open.SetFilter(storage.NewExtensionFileFilter(imageExtensions))
	open.Show()
}

func (a *DetectApp) detectImage(path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	img, set, err := detector.DetectFile(ctx, a.loop.Detector(), path)
	if err != nil {
		a.log.Warn("image detection failed", zap.String("path", path), zap.Error(err))
		fyne.Do(func() {
			a.statusLabel.SetText("")
			if errors.Is(err, detector.ErrInvalidInput) {
				err = fmt.Errorf("cannot read image %s: %w", path, err)
			}
			dialog.ShowError(err, a.mainWin)
		})
		return
	}

	shown := classes.Filter(set, classes.All)
	w, h := a.config.GetDisplaySize()
	surface := &render.Surface{
		Image: render.Fit(render.Annotate(img, shown), w, h),
		Text:  render.DetectionText(shown),
	}
	latency := time.Since(start)

	a.log.Info("image detected", zap.String("path", path), zap.Int("objects", len(set)))

	fyne.Do(func() {
		a.statusLabel.SetText("")
		a.latencyLabel.SetText(formatLatency(latency))
		a.display.show(surface)
	})
}

func (a *DetectApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	fpsInput := cwidget.NewIntInput(
		"FPS",
		"Enter integer",
		int(a.config.GetFPS()),
		func(i int) {
			a.config.SetFPS(uint(i))
		},
	)

	limitCheck := widget.NewCheck("Limit FPS", func(on bool) {
		a.config.SetLimitFPS(on)
	})
	limitCheck.SetChecked(a.config.GetLimitFPS())

	widthInput := cwidget.NewIntInput(
		"Width",
		"Enter integer",
		a.config.GetWidth(),
		func(i int) {
			a.config.SetWidth(i)
		},
	)

	heightInput := cwidget.NewIntInput(
		"Height",
		"Enter integer",
		a.config.GetHeight(),
		func(i int) {
			a.config.SetHeight(i)
		},
	)

	confidenceInput := cwidget.NewFloatInput(
		"Confidence",
		"0.0 - 1.0",
		a.config.GetConfidence(),
		0, 1,
		func(f float32) {
			a.config.SetConfidence(f)
			if d, ok := a.loop.Detector().(interface{ SetMinConfidence(float32) }); ok {
				d.SetMinConfidence(f)
			}
		},
	)

	applyCfg := widget.NewButton("Save config", func() {
		if err := a.config.SaveByDefault(); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if a.loop.State() == pipeline.Running {
			a.stopCapture()
			a.startCapture()
		}
	})

	a.staticSettings.Add(fpsInput)
	a.staticSettings.Add(limitCheck)
	a.staticSettings.Add(widthInput)
	a.staticSettings.Add(heightInput)
	a.staticSettings.Add(confidenceInput)

	a.staticSettings.Add(applyCfg)
}

func (a *DetectApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil
	a.stopCapture()
	if a.display != nil {
		a.display.clear()
	}

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		pathEntry := widget.NewEntry()
		pathEntry.SetPlaceHolder("/path/to/video.mp4")
		pathEntry.SetText(a.config.GetLocalPath())

		pathEntry.OnChanged = func(s string) {
			a.config.SetLocalPath(s)
		}

		fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
			dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
				if err == nil && reader != nil {
					pathEntry.SetText(reader.URI().Path())
					reader.Close()
				}
			}, a.mainWin)
		})

		a.dynamicSettings.Add(widget.NewLabel("Video Path:"))
		a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect([]string{loadingCameras}, func(s string) {
			if s != loadingCameras && s != noCameras {
				a.config.SetDeviceID(s)
			}
		})
		deviceSelect.SetSelected(loadingCameras)
		deviceSelect.Disable()

		a.dynamicSettings.Add(widget.NewLabel("Select Camera:"))
		a.dynamicSettings.Add(deviceSelect)
		a.dynamicSettings.Refresh()

		go func() {
			devices, err := capture.ListCameras()

			fyne.Do(func() {
				if err != nil {
					a.log.Warn("failed to list cameras", zap.Error(err))
					dialog.ShowError(err, a.mainWin)
					deviceSelect.Options = []string{"Error listing cameras"}
				} else if len(devices) == 0 {
					deviceSelect.Options = []string{noCameras}
				} else {
					deviceSelect.Options = devices
					deviceSelect.Enable()

					if id := a.config.GetDeviceID(); id != "" {
						deviceSelect.SetSelected(id)
					} else {
						deviceSelect.SetSelected(devices[0])
					}
				}
				deviceSelect.Refresh()
			})
		}()
	}

	a.dynamicSettings.Refresh()
}
