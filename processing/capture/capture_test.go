package capture

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"annotator/internal/config"
)

func TestWebcamArgs(t *testing.T) {
	args := webcamArgs("linux", "/dev/video2", 15, 320, 240)
	require.Equal(t, []string{
		"-f", "v4l2", "-i", "/dev/video2",
		"-vf", "fps=15,scale=320:240",
		"-f", "image2pipe", "-pix_fmt", "rgba", "-vcodec", "rawvideo", "-",
	}, args)

	args = webcamArgs("windows", "Integrated Camera", 0, 640, 480)
	require.Equal(t, []string{"-f", "dshow", "-i", "video=Integrated Camera"}, args[:4])
	require.Equal(t, "scale=640:480", args[5])
}

func TestLocalArgs(t *testing.T) {
	args := localArgs("clip.mp4", 0, 100, 50)
	require.Equal(t, []string{"-i", "clip.mp4", "-vf", "scale=100:50:flags=neighbor"}, args[:4])

	args = localArgs("clip.mp4", 10, 100, 50)
	require.Equal(t, "fps=10,scale=100:50:flags=neighbor", args[3])
}

func TestWriterArgs(t *testing.T) {
	args := writerArgs("out.mp4", 640, 480, 29.97)
	require.Contains(t, args, "640x480")
	require.Contains(t, args, "29.97")
	require.Equal(t, "out.mp4", args[len(args)-1])
}

func TestParseRate(t *testing.T) {
	require.InDelta(t, 29.97, parseRate("30000/1001"), 0.01)
	require.Equal(t, 25.0, parseRate("25"))
	require.Equal(t, 0.0, parseRate("0/0"))
	require.Equal(t, 0.0, parseRate("n/a"))
	require.Equal(t, 0.0, parseRate(""))
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(`{"streams":[{"width":1280,"height":720,"avg_frame_rate":"0/0","r_frame_rate":"30/1"}]}`))
	require.NoError(t, err)
	require.Equal(t, VideoInfo{Width: 1280, Height: 720, FPS: 30}, info)

	_, err = parseProbe([]byte(`{"streams":[]}`))
	require.Error(t, err)

	_, err = parseProbe([]byte(`garbage`))
	require.Error(t, err)
}

func TestParseDshowDevices(t *testing.T) {
	out := `[dshow @ 000001] "Integrated Camera" (video)
[dshow @ 000001]   Alternative name "@device_pnp_\\?\usb"
[dshow @ 000001] "Microphone Array" (audio)
[dshow @ 000001] "dummy" (video)
[dshow @ 000001] "USB Camera" (video)
[dshow @ 000001] "Integrated Camera" (video)
dummy: Immediate exit requested`

	require.Equal(t, []string{"Integrated Camera", "USB Camera"}, parseDshowDevices(out))
	require.Empty(t, parseDshowDevices(""))
}

func TestLastLine(t *testing.T) {
	require.Equal(t, "last", lastLine("first\nsecond\nlast\n"))
	require.Equal(t, "only", lastLine("only"))
}

func TestWebcamMissingDevice(t *testing.T) {
	ws := NewFFmpegWebcam(filepath.Join(t.TempDir(), "video9"), 24, 64, 48, zaptest.NewLogger(t))
	err := ws.Start()
	require.ErrorIs(t, err, ErrDeviceNotFound)
	ws.Stop()
	ws.Stop()
}

func TestLocalStreamerMissingFile(t *testing.T) {
	_, err := NewLocalStreamer(filepath.Join(t.TempDir(), "missing.mp4"), 0, 0, 0, false, zaptest.NewLogger(t))
	require.Error(t, err)
}

type fakeStreamer struct {
	startErr error
	started  bool
	stopped  int
	frames   chan image.Image
	errs     chan error
}

func (f *fakeStreamer) Start() error {
	f.started = true
	return f.startErr
}

func (f *fakeStreamer) Stop()                         { f.stopped++ }
func (f *fakeStreamer) FrameChan() <-chan image.Image { return f.frames }
func (f *fakeStreamer) ErrorChan() <-chan error       { return f.errs }

func TestStartWith(t *testing.T) {
	ok := &fakeStreamer{}
	s, err := StartWith(func() (VideoStreamer, error) { return ok, nil })()
	require.NoError(t, err)
	require.Same(t, ok, s)
	require.True(t, ok.started)
	require.Zero(t, ok.stopped)

	broken := &fakeStreamer{startErr: errors.New("busy")}
	_, err = StartWith(func() (VideoStreamer, error) { return broken, nil })()
	require.EqualError(t, err, "busy")
	require.Equal(t, 1, broken.stopped)

	_, err = StartWith(func() (VideoStreamer, error) { return nil, errors.New("no such file") })()
	require.EqualError(t, err, "no such file")
}

func TestNewStreamerUnknownSource(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetSource("Satellite")

	_, err := NewStreamer(cfg, zaptest.NewLogger(t))
	require.Error(t, err)

	cfg.SetSource(config.SourceWebcam)
	cfg.SetDeviceID(filepath.Join(t.TempDir(), "video0"))
	_, err = NewOpener(cfg, zaptest.NewLogger(t))()
	require.ErrorIs(t, err, ErrDeviceNotFound)
}
