package player

import (
	"errors"
	"fmt"

	"github.com/zsiec/framepace/media"
)

var (
	// ErrNoVideoStream is reported through OnMediaError when the source has
	// no video stream.
	ErrNoVideoStream = errors.New("player: no video stream")

	// ErrAlreadyStarted is returned by Start while a session is running.
	ErrAlreadyStarted = errors.New("player: already started")

	// ErrListenerBusy is returned by Register when a different listener is
	// already bound.
	ErrListenerBusy = errors.New("player: another listener is registered")

	// ErrListenerMismatch is returned by Unregister when the argument is not
	// the bound listener.
	ErrListenerMismatch = errors.New("player: listener is not registered")
)

// OpenError reports that the source could not be opened or probed.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("player: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// CodecError reports that no decoder could be opened for a stream.
type CodecError struct {
	Stream media.StreamInfo
	Err    error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("player: %s decoder for stream %d (%s): %v",
		e.Stream.Kind, e.Stream.Index, e.Stream.Codec, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }
