package player

import "github.com/zsiec/framepace/media"

// Listener receives decoded frames and fatal media errors. Frame callbacks
// run on the dispatch goroutine of their stream, OnMediaError on the decode
// goroutine. Each delivered frame is owned by the listener, which must call
// Release when done with it.
//
// Callbacks must not call Register, Unregister or Stop.
type Listener interface {
	OnVideoFrame(f *media.Frame)
	OnAudioFrame(f *media.Frame)
	OnMediaError(err error)
}

// EndOfStreamListener is implemented by listeners that want to know when a
// stream has delivered its last frame.
type EndOfStreamListener interface {
	OnEndOfStream(kind media.Kind)
}

// Funcs adapts plain functions to Listener and EndOfStreamListener. Nil
// fields release frames and ignore events.
type Funcs struct {
	Video       func(f *media.Frame)
	Audio       func(f *media.Frame)
	Error       func(err error)
	EndOfStream func(kind media.Kind)
}

func (fn *Funcs) OnVideoFrame(f *media.Frame) {
	if fn.Video == nil {
		f.Release()
		return
	}
	fn.Video(f)
}

func (fn *Funcs) OnAudioFrame(f *media.Frame) {
	if fn.Audio == nil {
		f.Release()
		return
	}
	fn.Audio(f)
}

func (fn *Funcs) OnMediaError(err error) {
	if fn.Error != nil {
		fn.Error(err)
	}
}

func (fn *Funcs) OnEndOfStream(kind media.Kind) {
	if fn.EndOfStream != nil {
		fn.EndOfStream(kind)
	}
}
