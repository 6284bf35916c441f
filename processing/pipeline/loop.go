// Package pipeline runs the acquire, detect, filter and render cycle against a
// live capture source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"annotator/internal/config"
	"annotator/processing/capture"
	"annotator/processing/classes"
	"annotator/processing/detector"
	"annotator/processing/render"
)

var (
	ErrAlreadyRunning     = errors.New("capture loop already running")
	ErrSourceUnavailable  = errors.New("capture source unavailable")
	ErrAcquisitionFailure = errors.New("frame acquisition failed")
)

type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Update is one render request posted from the capture goroutine to the UI.
type Update struct {
	// Surface is nil when the update carries no new frame.
	Surface *render.Surface
	// Classes is set only when the class list grew and the checkboxes need
	// rebuilding.
	Classes []classes.ClassState

	FPS     uint
	Latency time.Duration

	Err     error
	Stopped bool
}

const updateBuffer = 4

// Loop owns the detector, the class visibility mapping and the render request
// channel. At most one capture session runs at a time.
type Loop struct {
	cfg  *config.Config
	open capture.Opener
	det  detector.Detector
	vis  *classes.Visibility
	log  *zap.Logger

	updates chan Update
	active  atomic.Int32

	mu      sync.Mutex
	session *session
}

type session struct {
	streamer capture.VideoStreamer
	errs     <-chan error
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(cfg *config.Config, open capture.Opener, det detector.Detector, log *zap.Logger) *Loop {
	return &Loop{
		cfg:     cfg,
		open:    open,
		det:     det,
		vis:     classes.NewVisibility(),
		log:     log,
		updates: make(chan Update, updateBuffer),
	}
}

func (l *Loop) Visibility() *classes.Visibility { return l.vis }

func (l *Loop) Detector() detector.Detector { return l.det }

// Updates is drained by the UI thread. It is never closed.
func (l *Loop) Updates() <-chan Update { return l.updates }

// ActiveLoops reports how many capture goroutines are running.
func (l *Loop) ActiveLoops() int { return int(l.active.Load()) }

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session != nil {
		return Running
	}
	return Idle
}

// Start opens the capture source and begins the cycle in a new goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session != nil {
		return ErrAlreadyRunning
	}

	streamer, err := l.open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		streamer: streamer,
		errs:     streamer.ErrorChan(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	l.session = s
	l.active.Add(1)

	go l.run(ctx, s)

	l.log.Info("capture loop started", zap.String("source", string(l.cfg.GetSource())))
	return nil
}

// Stop cancels the running session and waits for its goroutine to release the
// source. The session counts as running until then, so Start cannot open a
// second source meanwhile. Calling Stop while idle does nothing.
func (l *Loop) Stop() {
	l.mu.Lock()
	s := l.session
	l.mu.Unlock()

	if s == nil {
		return
	}

	s.cancel()
	<-s.done
	l.log.Info("capture loop stopped")
}

func (l *Loop) run(ctx context.Context, s *session) {
	var cause error
	defer func() {
		s.streamer.Stop()
		s.cancel()

		l.mu.Lock()
		l.active.Add(-1)
		if l.session == s {
			l.session = nil
		}
		l.post(Update{Stopped: true, Err: cause})
		l.mu.Unlock()

		close(s.done)
	}()

	var (
		seen      []string
		seenSet   = make(map[string]struct{})
		frames    uint
		fps       uint
		lastCount = time.Now()
	)

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := s.acquire(ctx)
		if err != nil {
			if ctx.Err() == nil {
				cause = err
				l.log.Warn("capture loop ended", zap.Error(err))
			}
			return
		}

		start := time.Now()
		frame = render.Mirror(frame)

		set, err := l.det.Detect(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("detection failed", zap.Error(err))
		}

		for _, class := range set.Classes() {
			if _, ok := seenSet[class]; !ok {
				seenSet[class] = struct{}{}
				seen = append(seen, class)
			}
		}

		var changed []classes.ClassState
		if l.vis.Reconcile(seen) {
			changed = l.vis.Entries()
		}

		shown := classes.Filter(set, l.vis.VisibleSet())

		w, h := l.cfg.GetDisplaySize()
		surface := &render.Surface{
			Image: render.Fit(render.Annotate(frame, shown), w, h),
			Text:  render.DetectionText(shown),
		}

		frames++
		if time.Since(lastCount) >= time.Second {
			fps = frames
			frames = 0
			lastCount = time.Now()
		}

		l.post(Update{
			Surface: surface,
			Classes: changed,
			FPS:     fps,
			Latency: time.Since(start),
			Err:     err,
		})

		if !l.pace(ctx, start) {
			return
		}
	}
}

func (s *session) acquire(ctx context.Context) (image.Image, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-s.errs:
			if !ok {
				s.errs = nil
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAcquisitionFailure, err)
			}

		case frame, ok := <-s.streamer.FrameChan():
			if !ok {
				return nil, fmt.Errorf("%w: stream ended", ErrAcquisitionFailure)
			}
			if frame == nil {
				continue
			}
			return frame, nil
		}
	}
}

// pace sleeps out the rest of the frame period when frame limiting is on. It
// reports false if the session was cancelled meanwhile.
func (l *Loop) pace(ctx context.Context, start time.Time) bool {
	fps := l.cfg.GetFPS()
	if !l.cfg.GetLimitFPS() || fps == 0 {
		return true
	}

	wait := time.Second/time.Duration(fps) - time.Since(start)
	if wait <= 0 {
		return true
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// post never blocks: when the UI falls behind, the oldest pending update is
// discarded. A pending class list is carried into the newer update; errors are
// per frame and go with their frame.
func (l *Loop) post(u Update) {
	for {
		select {
		case l.updates <- u:
			return
		default:
		}

		select {
		case old := <-l.updates:
			if old.Classes != nil && u.Classes == nil {
				u.Classes = l.vis.Entries()
			}
		default:
		}
	}
}
