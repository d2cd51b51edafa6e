package main

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/oto/v2"

	"github.com/zsiec/framepace/internal/audioout"
	"github.com/zsiec/framepace/internal/config"
	"github.com/zsiec/framepace/media"
	"github.com/zsiec/framepace/player"
)

// playback is the CLI's listener. Video frames are logged and released;
// audio frames go to the sound card when enabled.
type playback struct {
	sess *player.Session
	log  *slog.Logger

	audio     *audioout.Reader
	audioOnce sync.Once
	device    oto.Player

	keyframes atomic.Int64
	captions  atomic.Int64

	mu       sync.Mutex
	ended    map[media.Kind]bool
	finished chan struct{}
	errs     chan error
}

func newPlayback(sess *player.Session, cfg config.AudioConfig) (*playback, error) {
	p := &playback{
		sess:     sess,
		log:      slog.Default().With("component", "playback"),
		ended:    make(map[media.Kind]bool),
		finished: make(chan struct{}),
		errs:     make(chan error, 1),
	}
	if cfg.Enabled {
		r, err := audioout.NewReader(cfg.Buffer)
		if err != nil {
			return nil, err
		}
		p.audio = r
	}
	return p, nil
}

// Finished is closed once every present stream has reached end of stream.
func (p *playback) Finished() <-chan struct{} { return p.finished }

// Errors delivers the first fatal media error.
func (p *playback) Errors() <-chan error { return p.errs }

func (p *playback) OnVideoFrame(f *media.Frame) {
	defer f.Release()
	if f.Keyframe {
		p.keyframes.Add(1)
	}
	for _, text := range f.Captions {
		p.captions.Add(1)
		p.log.Info("caption", "pts", f.PTS, "text", text)
	}
	p.log.Debug("video frame", "pts", f.PTS, "keyframe", f.Keyframe,
		"width", f.Width, "height", f.Height, "bytes", len(f.Data))
}

func (p *playback) OnAudioFrame(f *media.Frame) {
	defer f.Release()
	p.log.Debug("audio frame", "pts", f.PTS, "samples", f.Samples, "format", f.Format)
	if p.audio == nil {
		return
	}
	p.audioOnce.Do(func() { go p.openDevice(f.SampleRate, f.Channels) })
	p.audio.Push(f)
}

// openDevice starts the sound card at the rate of the first audio frame.
func (p *playback) openDevice(rate, channels int) {
	ctx, ready, err := oto.NewContext(rate, channels, oto.FormatSignedInt16LE)
	if err != nil {
		p.log.Warn("audio output unavailable", "error", err)
		return
	}
	<-ready
	dev := ctx.NewPlayer(p.audio)
	dev.Play()

	p.mu.Lock()
	p.device = dev
	p.mu.Unlock()
	p.log.Info("audio output started", "sampleRate", rate, "channels", channels)
}

func (p *playback) OnMediaError(err error) {
	select {
	case p.errs <- err:
	default:
	}
}

func (p *playback) OnEndOfStream(kind media.Kind) {
	st := p.sess.Stats()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended[kind] = true
	if (!st.Video.Present || p.ended[media.KindVideo]) && (!st.Audio.Present || p.ended[media.KindAudio]) {
		select {
		case <-p.finished:
		default:
			close(p.finished)
		}
	}
}

func (p *playback) Close() error {
	p.mu.Lock()
	dev := p.device
	p.mu.Unlock()
	if dev != nil {
		dev.Close()
	}
	if p.audio != nil {
		pushed, dropped, silent := p.audio.Stats()
		p.log.Debug("audio output closed", "chunks", pushed, "dropped", dropped, "silentBytes", silent)
		return p.audio.Close()
	}
	return nil
}
