package capture

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FFmpegWebcamStreamer reads RGBA frames from a camera through an ffmpeg
// subprocess. Frames the consumer is not ready for are dropped.
type FFmpegWebcamStreamer struct {
	stopOnce sync.Once
	waitOnce sync.Once

	deviceName string
	width      int
	height     int
	targetFPS  uint
	log        *zap.Logger

	cmd       *exec.Cmd
	stderr    bytes.Buffer
	frameChan chan image.Image
	errChan   chan error

	stopChan chan struct{}
}

func NewFFmpegWebcam(deviceName string, targetFps uint, scaledWidth int, scaledHeight int, log *zap.Logger) *FFmpegWebcamStreamer {
	return &FFmpegWebcamStreamer{
		deviceName: deviceName,
		width:      scaledWidth,
		height:     scaledHeight,
		targetFPS:  targetFps,
		log:        log,

		frameChan: make(chan image.Image),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}
}

func webcamArgs(goos, device string, fps uint, width, height int) []string {
	var input []string
	if goos == "windows" {
		input = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", device)}
	} else {
		input = []string{"-f", "v4l2", "-i", device}
	}

	filter := fmt.Sprintf("scale=%d:%d", width, height)
	if fps > 0 {
		filter = fmt.Sprintf("fps=%d,%s", fps, filter)
	}

	return append(input,
		"-vf", filter,
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

func (ws *FFmpegWebcamStreamer) Start() error {
	if runtime.GOOS != "windows" {
		if _, err := os.Stat(ws.deviceName); err != nil {
			return fmt.Errorf("%w: %s", ErrDeviceNotFound, ws.deviceName)
		}
	}

	ws.cmd = exec.Command("ffmpeg", webcamArgs(runtime.GOOS, ws.deviceName, ws.targetFPS, ws.width, ws.height)...)
	ws.cmd.Stderr = &ws.stderr

	stdout, err := ws.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := ws.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	ws.log.Info("webcam capture started",
		zap.String("device", ws.deviceName),
		zap.Int("width", ws.width),
		zap.Int("height", ws.height),
		zap.Uint("fps", ws.targetFPS))

	go ws.readLoop(stdout)

	return nil
}

func (ws *FFmpegWebcamStreamer) readLoop(stdout io.ReadCloser) {
	defer close(ws.frameChan)
	defer close(ws.errChan)
	defer stdout.Close()
	defer ws.stopCmdOut()

	frameSize := ws.width * ws.height * 4
	buffer := make([]byte, frameSize)

	for {
		select {
		case <-ws.stopChan:
			return

		default:
			_, err := io.ReadFull(stdout, buffer)
			if err != nil {
				select {
				case <-ws.stopChan:
					return
				default:
					// stderr is only safe to read once ffmpeg has exited
					ws.stopCmdOut()
					ws.errChan <- fmt.Errorf("read error: %v: %s", err, lastLine(ws.stderr.String()))
					return
				}
			}

			pixelData := make([]byte, len(buffer))
			copy(pixelData, buffer)

			img := &image.RGBA{
				Pix:    pixelData,
				Stride: ws.width * 4,
				Rect:   image.Rect(0, 0, ws.width, ws.height),
			}

			select {
			case ws.frameChan <- img:
			default:
			}
		}
	}
}

func (ws *FFmpegWebcamStreamer) stopCmdOut() {
	ws.waitOnce.Do(func() {
		if ws.cmd != nil && ws.cmd.Process != nil {
			ws.cmd.Process.Kill()
			ws.cmd.Wait()
		}
	})
}

func (ws *FFmpegWebcamStreamer) Stop() {
	ws.stopOnce.Do(func() {
		close(ws.stopChan)
		ws.stopCmdOut()
	})
}

func (ws *FFmpegWebcamStreamer) FrameChan() <-chan image.Image { return ws.frameChan }
func (ws *FFmpegWebcamStreamer) ErrorChan() <-chan error       { return ws.errChan }

var dshowDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListCameras returns the capture devices ffmpeg can open.
func ListCameras() ([]string, error) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		// ffmpeg always exits non-zero here, the listing is on stderr
		cmd.Run()
		return parseDshowDevices(stderr.String()), nil
	}

	cameras, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	return cameras, nil
}

func parseDshowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
