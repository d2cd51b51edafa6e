package player

import (
	"github.com/zsiec/framepace/internal/pacer"
	"github.com/zsiec/framepace/media"
)

// dispatch is the consumer loop of one lane. It runs until it pops the
// shutdown message.
func (s *Session) dispatch(r *run, l *lane) {
	<-r.ready
	if !l.present {
		r.log.Debug("stream absent, dispatch loop exiting", "kind", l.kind)
		return
	}

	p := pacer.New(l.info, s.pacerOpts...)
	for {
		msg := l.q.Pop()
		switch msg.Kind {
		case media.MessageShutdown:
			return
		case media.MessageEndOfStream:
			r.log.Info("stream finished", "kind", l.kind, "delivered", l.delivered.Load())
			s.notifyEndOfStream(l.kind)
		case media.MessageFrame:
			s.present(r, l, p, msg.Frame)
		}
	}
}

// present waits until f is due and hands it to the listener. Frames that
// cannot be delivered are released.
func (s *Session) present(r *run, l *lane, p *pacer.Pacer, f *media.Frame) {
	if r.stopped.Load() {
		f.Release()
		return
	}

	res, err := p.Wait(r.ctx, f.PTS)
	if err != nil {
		f.Release()
		return
	}
	if res == pacer.Late {
		l.late.Add(1)
	}

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener == nil || r.stopped.Load() {
		f.Release()
		l.dropped.Add(1)
		return
	}
	if l.kind == media.KindVideo {
		s.listener.OnVideoFrame(f)
	} else {
		s.listener.OnAudioFrame(f)
	}
	l.delivered.Add(1)
}
