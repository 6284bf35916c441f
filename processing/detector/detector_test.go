package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"annotator/internal/config"
	"annotator/internal/models"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

// detectionServer answers every binary frame with reply(frame).
func detectionServer(t *testing.T, reply func(frame image.Image) []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			frame, err := jpeg.Decode(bytes.NewReader(msg))
			if err != nil {
				return
			}
			out := reply(frame)
			if out == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv, &connections
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRemoteDetectorConvertsResults(t *testing.T) {
	srv, conns := detectionServer(t, func(frame image.Image) []byte {
		b, _ := json.Marshal([]remoteResult{
			{Label: "person", Confidence: 0.91, Box: []float32{0.1, 0.1, 0.5, 0.5}},
			{ClassID: 1, Confidence: 0.76, Box: []float32{0.6, 0.6, 0.9, 0.9}},
			{ClassID: 7, Confidence: 0.10, Box: []float32{0, 0, 1, 1}},
		})
		return b
	})

	d := NewRemoteDetector(wsURL(srv), NewClassNames([]string{"person", "dog"}), zaptest.NewLogger(t))
	defer d.Close()
	d.SetMinConfidence(0.2)

	set, err := d.Detect(context.Background(), testImage(100, 100))
	require.NoError(t, err)
	require.Equal(t, models.DetectionSet{
		{Class: "person", Confidence: 0.91, Box: models.Box{X1: 10, Y1: 10, X2: 50, Y2: 50}},
		{Class: "dog", Confidence: 0.76, Box: models.Box{X1: 60, Y1: 60, X2: 90, Y2: 90}},
	}, set)

	// the connection is reused
	_, err = d.Detect(context.Background(), testImage(100, 100))
	require.NoError(t, err)
	require.Equal(t, int32(1), conns.Load())
}

func TestRemoteDetectorInvalidInput(t *testing.T) {
	d := NewRemoteDetector("127.0.0.1:1", nil, zaptest.NewLogger(t))

	_, err := d.Detect(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rectangle{}))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRemoteDetectorServerRejectsFrame(t *testing.T) {
	srv, _ := detectionServer(t, func(image.Image) []byte {
		return []byte(`{"error": "corrupt frame"}`)
	})

	d := NewRemoteDetector(wsURL(srv), nil, zaptest.NewLogger(t))
	defer d.Close()

	_, err := d.Detect(context.Background(), testImage(8, 8))
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Contains(t, err.Error(), "corrupt frame")
}

func TestRemoteDetectorUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	d := NewRemoteDetector(url, nil, zaptest.NewLogger(t))
	_, err := d.Detect(context.Background(), testImage(8, 8))
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInvalidInput))
}

func TestRemoteDetectorContextCancelUnblocks(t *testing.T) {
	// the server never answers
	srv, _ := detectionServer(t, func(image.Image) []byte { return nil })

	d := NewRemoteDetector(wsURL(srv), nil, zaptest.NewLogger(t))
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.Detect(ctx, testImage(8, 8))
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRemoteDetectorKeepsConnectionOnBadReply(t *testing.T) {
	var calls atomic.Int32
	srv, conns := detectionServer(t, func(image.Image) []byte {
		if calls.Add(1) == 1 {
			return []byte(`not json`)
		}
		return []byte(`[]`)
	})

	d := NewRemoteDetector(wsURL(srv), nil, zaptest.NewLogger(t))
	defer d.Close()

	_, err := d.Detect(context.Background(), testImage(8, 8))
	require.Error(t, err)

	set, err := d.Detect(context.Background(), testImage(8, 8))
	require.NoError(t, err)
	require.Empty(t, set)
	require.Equal(t, int32(1), conns.Load())
}

func TestServerURL(t *testing.T) {
	require.Equal(t, "ws://localhost:8080/ws", ServerURL("localhost:8080"))
	require.Equal(t, "wss://det.example/v1", ServerURL("wss://det.example/v1"))
}

func TestFilterConfidence(t *testing.T) {
	set := models.DetectionSet{{Class: "a", Confidence: 0.1}, {Class: "b", Confidence: 0.5}}
	require.Equal(t, set, FilterConfidence(set, 0))
	require.Equal(t, models.DetectionSet{set[1]}, FilterConfidence(set, 0.2))
}

func TestDetectFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0644))

	_, _, err := DetectFile(context.Background(), stubDetector{}, path)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = DetectFile(context.Background(), stubDetector{}, filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestDetectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	img := testImage(20, 10)
	img.Set(0, 0, color.White)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	decoded, set, err := DetectFile(context.Background(), stubDetector{}, path)
	require.NoError(t, err)
	require.Equal(t, 20, decoded.Bounds().Dx())
	require.Equal(t, models.DetectionSet{{Class: "stub", Confidence: 1}}, set)
}

type stubDetector struct{}

func (stubDetector) Detect(ctx context.Context, img image.Image) (models.DetectionSet, error) {
	return models.DetectionSet{{Class: "stub", Confidence: 1}}, nil
}

func (stubDetector) Close() error { return nil }

func TestOpenBackends(t *testing.T) {
	log := zaptest.NewLogger(t)

	d, err := Open(config.DetectorConfig{URL: "localhost:9000", Confidence: 0.3}, log)
	require.NoError(t, err)
	remote, ok := d.(*RemoteDetector)
	require.True(t, ok)
	require.Equal(t, "ws://localhost:9000/ws", remote.serverURL)
	require.InDelta(t, 0.3, remote.MinConfidence(), 1e-6)

	_, err = Open(config.DetectorConfig{Backend: "tpu"}, log)
	require.Error(t, err)

	_, err = Open(config.DetectorConfig{ClassesPath: filepath.Join(t.TempDir(), "nope.txt")}, log)
	require.Error(t, err)
}
