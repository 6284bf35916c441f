package capture

import (
	"errors"
	"image"
)

// ErrDeviceNotFound is returned by Start when the capture device does not
// exist.
var ErrDeviceNotFound = errors.New("capture device not found")

// VideoStreamer produces decoded frames until stopped or the source ends.
// FrameChan is closed when the stream ends; a read failure is reported once
// on ErrorChan first.
type VideoStreamer interface {
	Start() error
	Stop()
	FrameChan() <-chan image.Image
	ErrorChan() <-chan error
}

// Opener creates and starts a streamer.
type Opener func() (VideoStreamer, error)

// StartWith wraps an unstarted streamer constructor into an Opener.
func StartWith(create func() (VideoStreamer, error)) Opener {
	return func() (VideoStreamer, error) {
		s, err := create()
		if err != nil {
			return nil, err
		}
		if err := s.Start(); err != nil {
			s.Stop()
			return nil, err
		}
		return s, nil
	}
}
