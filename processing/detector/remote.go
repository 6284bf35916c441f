package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"annotator/internal/models"
)

// remoteResult is one detection as sent by the detection server. Box is
// normalised [y1, x1, y2, x2].
type remoteResult struct {
	Label      string    `json:"label"`
	ClassID    int       `json:"class_id"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

type remoteError struct {
	Error string `json:"error"`
}

// RemoteDetector sends JPEG frames to a detection server over a websocket and
// reads back one JSON reply per frame. Calls are serialised on a single
// connection, which is dialled on first use and dropped after any transport
// error.
type RemoteDetector struct {
	serverURL string
	names     ClassNames
	dialer    *websocket.Dialer
	log       *zap.Logger

	minConfidence atomic.Uint32

	mu   sync.Mutex
	conn *websocket.Conn
}

// ServerURL normalises a detector address. A bare host:port becomes
// ws://host:port/ws.
func ServerURL(addr string) string {
	if strings.Contains(addr, "://") {
		return addr
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	return u.String()
}

func NewRemoteDetector(addr string, names ClassNames, log *zap.Logger) *RemoteDetector {
	d := &RemoteDetector{
		serverURL: ServerURL(addr),
		names:     names,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		log: log,
	}
	return d
}

func (d *RemoteDetector) SetMinConfidence(c float32) {
	d.minConfidence.Store(math.Float32bits(c))
}

func (d *RemoteDetector) MinConfidence() float32 {
	return math.Float32frombits(d.minConfidence.Load())
}

func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) (models.DetectionSet, error) {
	if err := CheckImage(img); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("%w: jpeg encode: %v", ErrInvalidInput, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		if !stop() {
			d.drop()
		}
	}()

	deadline, _ := ctx.Deadline()
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		d.drop()
		return nil, d.transportError(ctx, "send frame", err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.drop()
		return nil, d.transportError(ctx, "read detections", err)
	}

	var results []remoteResult
	if err := json.Unmarshal(message, &results); err != nil {
		var rerr remoteError
		if json.Unmarshal(message, &rerr) == nil && rerr.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, rerr.Error)
		}
		return nil, fmt.Errorf("decode detections: %w", err)
	}

	return FilterConfidence(d.convert(results, img.Bounds()), d.MinConfidence()), nil
}

func (d *RemoteDetector) convert(results []remoteResult, bounds image.Rectangle) models.DetectionSet {
	w := float32(bounds.Dx())
	h := float32(bounds.Dy())

	set := make(models.DetectionSet, 0, len(results))
	for _, r := range results {
		if len(r.Box) != 4 {
			d.log.Warn("skipping detection with malformed box", zap.Int("len", len(r.Box)))
			continue
		}

		class := r.Label
		if class == "" {
			class = d.names.Name(r.ClassID)
		}

		set = append(set, models.Detection{
			Class:      class,
			Confidence: r.Confidence,
			Box: models.Box{
				X1: bounds.Min.X + px(r.Box[1], w),
				Y1: bounds.Min.Y + px(r.Box[0], h),
				X2: bounds.Min.X + px(r.Box[3], w),
				Y2: bounds.Min.Y + px(r.Box[2], h),
			},
		})
	}
	return set
}

func px(v, size float32) int {
	return int(math.Round(float64(v * size)))
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	d.log.Info("connecting to detector server", zap.String("url", d.serverURL))
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to detector %s: %w", d.serverURL, err)
	}
	d.log.Info("connected to detector server")

	d.conn = conn
	return conn, nil
}

// drop forgets the current connection. Callers hold d.mu.
func (d *RemoteDetector) drop() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *RemoteDetector) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	d.log.Warn("detector connection lost", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := d.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	closeErr := d.conn.Close()
	d.conn = nil

	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return err
	}
	return closeErr
}
