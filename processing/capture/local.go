package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LocalFileStreamer decodes a video file through ffmpeg. In realtime mode
// frames are released at the target frame rate, as for live playback;
// otherwise every frame is delivered as fast as the consumer takes it.
type LocalFileStreamer struct {
	stopOnce sync.Once
	waitOnce sync.Once

	path      string
	targetFPS uint
	realtime  bool
	log       *zap.Logger

	info VideoInfo

	s_width  int
	s_height int

	cmd       *exec.Cmd
	stderr    bytes.Buffer
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

// VideoInfo is what ffprobe reports for the first video stream.
type VideoInfo struct {
	Width  int
	Height int
	FPS    float64
}

// NewLocalStreamer probes path and prepares a streamer. A zero width or height
// keeps the native resolution, a zero targetFPS the native frame rate.
func NewLocalStreamer(path string, targetFPS uint, scaledWidth int, scaledHeight int, realtime bool, log *zap.Logger) (*LocalFileStreamer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	info, err := ProbeVideo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe video: %w", err)
	}

	if scaledWidth <= 0 || scaledHeight <= 0 {
		scaledWidth, scaledHeight = info.Width, info.Height
	}

	return &LocalFileStreamer{
		path:      path,
		targetFPS: targetFPS,
		realtime:  realtime,
		log:       log,
		info:      info,
		s_width:   scaledWidth,
		s_height:  scaledHeight,
		frameChan: make(chan image.Image, 10),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}, nil
}

func (ls *LocalFileStreamer) Info() VideoInfo {
	return ls.info
}

// FrameSize is the size of the frames delivered on FrameChan.
func (ls *LocalFileStreamer) FrameSize() (int, int) {
	return ls.s_width, ls.s_height
}

func localArgs(path string, fps uint, width, height int) []string {
	filter := fmt.Sprintf("scale=%d:%d:flags=neighbor", width, height)
	if fps > 0 {
		filter = fmt.Sprintf("fps=%d,%s", fps, filter)
	}

	return []string{
		"-i", path,
		"-vf", filter,
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	}
}

func (ls *LocalFileStreamer) Start() error {
	ls.cmd = exec.Command("ffmpeg", localArgs(ls.path, ls.targetFPS, ls.s_width, ls.s_height)...)
	ls.cmd.Stderr = &ls.stderr

	stdout, err := ls.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := ls.cmd.Start(); err != nil {
		return err
	}

	ls.log.Info("video decode started", zap.String("path", ls.path), zap.Bool("realtime", ls.realtime))

	go ls.readFrames(stdout)

	return nil
}

const (
	bytePerPixel = 4
	standartFps  = 30
)

func (ls *LocalFileStreamer) readFrames(stdout io.ReadCloser) {
	defer close(ls.frameChan)
	defer close(ls.errChan)
	defer stdout.Close()
	defer ls.stopCmdOut()

	width := ls.s_width
	height := ls.s_height
	frameSize := width * height * bytePerPixel
	buffer := make([]byte, frameSize)

	var tick <-chan time.Time
	if ls.realtime {
		fps := float64(ls.targetFPS)
		if fps == 0 {
			fps = ls.info.FPS
		}
		if fps <= 0 {
			fps = standartFps
		}
		ticker := time.NewTicker(time.Duration(float64(time.Second) / fps))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ls.stopChan:
				return
			case <-tick:
			}
		}

		_, err := io.ReadFull(stdout, buffer)
		if err == io.EOF {
			return
		}
		if err != nil {
			select {
			case <-ls.stopChan:
				return
			default:
				ls.stopCmdOut()
				ls.errChan <- fmt.Errorf("read error: %v: %s", err, lastLine(ls.stderr.String()))
				return
			}
		}

		pixelData := make([]byte, len(buffer))
		copy(pixelData, buffer)

		img := &image.RGBA{
			Pix:    pixelData,
			Stride: width * bytePerPixel,
			Rect:   image.Rect(0, 0, width, height),
		}

		select {
		case ls.frameChan <- img:
		case <-ls.stopChan:
			return
		}
	}
}

func (ls *LocalFileStreamer) stopCmdOut() {
	ls.waitOnce.Do(func() {
		if ls.cmd != nil && ls.cmd.Process != nil {
			ls.cmd.Process.Kill()
			ls.cmd.Wait()
		}
	})
}

func (ls *LocalFileStreamer) Stop() {
	ls.stopOnce.Do(func() {
		close(ls.stopChan)
		ls.stopCmdOut()
	})
}

func (ls *LocalFileStreamer) FrameChan() <-chan image.Image {
	return ls.frameChan
}

func (ls *LocalFileStreamer) ErrorChan() <-chan error {
	return ls.errChan
}

type probeData struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// ProbeVideo runs ffprobe on the first video stream of path.
func ProbeVideo(path string) (VideoInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,avg_frame_rate,r_frame_rate",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, err
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (VideoInfo, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return VideoInfo{}, err
	}

	if len(data.Streams) == 0 {
		return VideoInfo{}, fmt.Errorf("no video streams found")
	}

	s := data.Streams[0]
	fps := parseRate(s.AvgFrameRate)
	if fps == 0 {
		fps = parseRate(s.RFrameRate)
	}

	return VideoInfo{Width: s.Width, Height: s.Height, FPS: fps}, nil
}

// parseRate parses ffprobe rates such as "30000/1001". Invalid input gives 0.
func parseRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
