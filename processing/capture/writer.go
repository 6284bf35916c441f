package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"
)

// VideoWriter encodes RGBA frames to a video file through ffmpeg.
type VideoWriter struct {
	width  int
	height int

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	frame  *image.RGBA
	frames int
}

func writerArgs(path string, width, height int, fps float64) []string {
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-i", "-",
		"-c:v", "mpeg4",
		"-q:v", "3",
		"-pix_fmt", "yuv420p",
		path,
	}
}

func NewVideoWriter(path string, width, height int, fps float64) (*VideoWriter, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", width, height)
	}
	if fps <= 0 {
		fps = standartFps
	}

	w := &VideoWriter{
		width:  width,
		height: height,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
	}

	w.cmd = exec.Command("ffmpeg", writerArgs(path, width, height, fps)...)
	w.cmd.Stderr = &w.stderr

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	w.stdin = stdin

	if err := w.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	return w, nil
}

// Write appends one frame. Frames of a different size are cropped or padded
// to the output size.
func (w *VideoWriter) Write(img image.Image) error {
	src := img
	if rgba, ok := img.(*image.RGBA); !ok || rgba.Rect != w.frame.Rect || rgba.Stride != w.width*bytePerPixel {
		draw.Draw(w.frame, w.frame.Rect, img, img.Bounds().Min, draw.Src)
		src = w.frame
	}

	if _, err := w.stdin.Write(src.(*image.RGBA).Pix); err != nil {
		return fmt.Errorf("write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

func (w *VideoWriter) Frames() int {
	return w.frames
}

// Close flushes the encoder and waits for ffmpeg to finish the file.
func (w *VideoWriter) Close() error {
	if err := w.stdin.Close(); err != nil {
		return err
	}
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLine(w.stderr.String()))
	}
	return nil
}
