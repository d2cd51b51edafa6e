// Package player is the playback core: a decode worker feeding bounded
// per-stream queues, and one dispatch loop per stream that paces frames to
// the wall clock before handing them to a Listener.
package player

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/internal/pacer"
	"github.com/zsiec/framepace/media"
)

const tracerName = "github.com/zsiec/framepace/player"

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Nil selects slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVideoQueueSize sets the video queue capacity.
func WithVideoQueueSize(n int) Option {
	return func(s *Session) { s.videoQueue = n }
}

// WithAudioQueueSize sets the audio queue capacity.
func WithAudioQueueSize(n int) Option {
	return func(s *Session) { s.audioQueue = n }
}

// WithTracer sets the tracer for session spans. The default comes from the
// global OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// WithClock replaces the wall clock used for pacing.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Session) {
		s.pacerOpts = append(s.pacerOpts, pacer.WithClock(now, sleep))
	}
}

// Session plays one source at a time. Start, Stop, Register, Unregister and
// Stats may be called from any goroutine.
type Session struct {
	backend    codec.Backend
	log        *slog.Logger
	tracer     trace.Tracer
	videoQueue int
	audioQueue int
	pacerOpts  []pacer.Option

	// listenerMu is held for reading during every callback, so taking it
	// for writing waits out any callback in flight.
	listenerMu sync.RWMutex
	listener   Listener

	mu  sync.Mutex // serializes Start and Stop
	cur atomic.Pointer[run]
}

// New returns an idle Session that opens sources with backend.
func New(backend codec.Backend, opts ...Option) *Session {
	s := &Session{
		backend:    backend,
		log:        slog.Default(),
		videoQueue: media.VideoQueueSize,
		audioQueue: media.AudioQueueSize,
	}
	for _, o := range opts {
		o(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.log = s.log.With("component", "player")
	return s
}

// run is the state of one Start..Stop cycle. A new run is built by every
// Start, so nothing carries over between sources.
type run struct {
	id      string
	source  string
	started time.Time
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	video *lane
	audio *lane

	ready     chan struct{}
	readyOnce sync.Once

	worker errgroup.Group
	loops  errgroup.Group
	done   chan struct{}

	stopped atomic.Bool
	state   atomic.Uint32

	errMu sync.Mutex
	err   error
}

func (r *run) lanes() []*lane { return []*lane{r.video, r.audio} }

// openGate releases the dispatch loops waiting for stream discovery.
func (r *run) openGate() {
	r.readyOnce.Do(func() { close(r.ready) })
}

func (r *run) isReady() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

func (r *run) setState(st WorkerState) {
	prev := WorkerState(r.state.Swap(uint32(st)))
	if prev != st {
		r.log.Debug("worker state", "from", prev, "to", st)
	}
}

func (r *run) setErr(err error) {
	r.errMu.Lock()
	r.err = err
	r.errMu.Unlock()
}

func (r *run) error() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// Start begins playing path. It returns once the worker and both dispatch
// loops are running; problems with the media itself are reported to the
// listener's OnMediaError, not returned. ctx scopes values such as the
// parent trace span, not the lifetime of playback, which ends with Stop.
func (s *Session) Start(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.cur.Load(); r != nil && !r.stopped.Load() {
		s.log.Warn("start while running", "session", r.id)
		return ErrAlreadyStarted
	}

	ctx, span := s.tracer.Start(ctx, "player.Start", trace.WithAttributes(
		attribute.String("player.source", path),
		attribute.String("player.backend", s.backend.Name()),
	))
	defer span.End()

	video, err := newLane(media.KindVideo, s.videoQueue)
	if err != nil {
		span.RecordError(err)
		return err
	}
	audio, err := newLane(media.KindAudio, s.audioQueue)
	if err != nil {
		span.RecordError(err)
		return err
	}

	id := uuid.NewString()
	r := &run{
		id:      id,
		source:  path,
		started: time.Now(),
		log:     s.log.With("session", id),
		video:   video,
		audio:   audio,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	span.SetAttributes(attribute.String("player.session", id))
	s.cur.Store(r)

	r.worker.Go(func() error {
		defer close(r.done)
		defer r.setState(StateClosed)
		return s.decode(r)
	})
	for _, l := range r.lanes() {
		r.loops.Go(func() error {
			s.dispatch(r, l)
			return nil
		})
	}

	r.log.Info("playback started", "source", path, "backend", s.backend.Name())
	return nil
}

// Stop ends playback and returns once the worker and both dispatch loops
// have exited and every undelivered frame has been released. No callback
// runs after Stop returns. Stop is a no-op if the session is not running.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.cur.Load()
	if r == nil || !r.stopped.CompareAndSwap(false, true) {
		return
	}

	r.cancel()
	if err := r.worker.Wait(); err != nil {
		r.log.Debug("worker exited with error", "error", err)
	}

	r.openGate()
	for _, l := range r.lanes() {
		releaseAll(l.q.Replace([]media.Message{media.Shutdown()}))
	}
	_ = r.loops.Wait()
	for _, l := range r.lanes() {
		releaseAll(l.q.Replace(nil))
	}

	r.log.Info("playback stopped",
		"videoDelivered", r.video.delivered.Load(),
		"audioDelivered", r.audio.delivered.Load(),
		"late", r.video.late.Load()+r.audio.late.Load(),
		"dropped", r.video.dropped.Load()+r.audio.dropped.Load(),
	)
}

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Done returns a channel closed when the current session's decode worker
// has exited: end of stream, a fatal media error or Stop. Dispatch loops
// may still be delivering queued frames. Without a session the channel is
// already closed.
func (s *Session) Done() <-chan struct{} {
	if r := s.cur.Load(); r != nil {
		return r.done
	}
	return closedDone
}

// Register binds l as the listener. Registering the bound listener again is
// a no-op; a different listener gets ErrListenerBusy.
func (s *Session) Register(l Listener) error {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener != nil && s.listener != l {
		s.log.Error("listener error", "error", ErrListenerBusy)
		return ErrListenerBusy
	}
	s.listener = l
	return nil
}

// Unregister unbinds l, waiting for any callback in flight to return. If l
// is not the bound listener, nothing changes and ErrListenerMismatch is
// returned.
func (s *Session) Unregister(l Listener) error {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener == nil || s.listener != l {
		s.log.Error("listener error", "error", ErrListenerMismatch)
		return ErrListenerMismatch
	}
	s.listener = nil
	return nil
}

// Stats returns counters for the current, or most recent, session.
func (s *Session) Stats() Stats {
	st := Stats{Backend: s.backend.Name(), State: StateIdle}
	r := s.cur.Load()
	if r == nil {
		return st
	}

	st.SessionID = r.id
	st.Source = r.source
	st.State = WorkerState(r.state.Load())
	st.Running = !r.stopped.Load()
	st.UptimeMs = time.Since(r.started).Milliseconds()
	if err := r.error(); err != nil {
		st.Error = err.Error()
	}
	ready := r.isReady()
	st.Video = r.video.stats(ready)
	st.Audio = r.audio.stats(ready)
	return st
}

func (s *Session) notifyError(err error) {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if s.listener != nil {
		s.listener.OnMediaError(err)
	}
}

func (s *Session) notifyEndOfStream(kind media.Kind) {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	if l, ok := s.listener.(EndOfStreamListener); ok {
		l.OnEndOfStream(kind)
	}
}
