//go:build gocv

package capture

import (
	"fmt"
	"image"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// CVCamera captures frames through OpenCV instead of an ffmpeg subprocess.
// Only built with -tags gocv.
type CVCamera struct {
	stopOnce sync.Once

	device string
	width  int
	height int
	log    *zap.Logger

	cap       *gocv.VideoCapture
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
	done      chan struct{}
}

func NewCVCamera(device string, width, height int, log *zap.Logger) *CVCamera {
	return &CVCamera{
		device:    device,
		width:     width,
		height:    height,
		log:       log,
		frameChan: make(chan image.Image),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (c *CVCamera) Start() error {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(c.device); convErr == nil {
		vc, err = gocv.OpenVideoCapture(id)
	} else {
		vc, err = gocv.OpenVideoCapture(c.device)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeviceNotFound, c.device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, c.device)
	}

	if c.width > 0 && c.height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	c.cap = vc
	go c.readLoop()
	return nil
}

func (c *CVCamera) readLoop() {
	defer close(c.done)
	defer close(c.frameChan)
	defer close(c.errChan)

	mat := gocv.NewMat()
	defer mat.Close()
	rgb := gocv.NewMat()
	defer rgb.Close()

	for {
		select {
		case <-c.stopChan:
			return
		default:
		}

		if ok := c.cap.Read(&mat); !ok || mat.Empty() {
			select {
			case <-c.stopChan:
			default:
				c.errChan <- fmt.Errorf("read error: camera %s returned no frame", c.device)
			}
			return
		}

		if err := gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGBA); err != nil {
			c.log.Warn("frame conversion failed", zap.Error(err))
			continue
		}

		img, err := rgb.ToImage()
		if err != nil {
			c.log.Warn("frame conversion failed", zap.Error(err))
			continue
		}

		select {
		case c.frameChan <- img:
		default:
		}
	}
}

func (c *CVCamera) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		if c.cap != nil {
			<-c.done
			c.cap.Close()
		}
	})
}

func (c *CVCamera) FrameChan() <-chan image.Image { return c.frameChan }
func (c *CVCamera) ErrorChan() <-chan error       { return c.errChan }
