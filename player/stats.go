package player

import (
	"sync/atomic"

	"github.com/zsiec/framepace/internal/queue"
	"github.com/zsiec/framepace/media"
)

// Stats is a point-in-time snapshot of a session, suitable for JSON.
type Stats struct {
	SessionID string      `json:"sessionId,omitempty"`
	Source    string      `json:"source,omitempty"`
	Backend   string      `json:"backend"`
	State     WorkerState `json:"state"`
	Running   bool        `json:"running"`
	UptimeMs  int64       `json:"uptimeMs"`
	Error     string      `json:"error,omitempty"`
	Video     StreamStats `json:"video"`
	Audio     StreamStats `json:"audio"`
}

// StreamStats describes one of the two playback lanes.
type StreamStats struct {
	Present    bool   `json:"present"`
	Codec      string `json:"codec,omitempty"`
	TimeBase   string `json:"timeBase,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`

	Decoded      int64 `json:"decoded"`
	Corrupt      int64 `json:"corrupt"`
	DecodeErrors int64 `json:"decodeErrors"`
	Delivered    int64 `json:"delivered"`
	Dropped      int64 `json:"dropped"`
	Late         int64 `json:"late"`

	QueueDepth int `json:"queueDepth"`
	QueueCap   int `json:"queueCap"`
}

// lane is one stream's path from the decode worker to the listener: its
// queue, the stream it carries and the counters both sides update.
type lane struct {
	kind media.Kind
	q    *queue.Queue[media.Message]

	// Written by the worker before the ready gate opens, read after.
	info    media.StreamInfo
	present bool

	decoded      atomic.Int64
	corrupt      atomic.Int64
	decodeErrors atomic.Int64
	delivered    atomic.Int64
	dropped      atomic.Int64
	late         atomic.Int64
}

func newLane(kind media.Kind, capacity int) (*lane, error) {
	q, err := queue.New[media.Message](capacity)
	if err != nil {
		return nil, err
	}
	return &lane{kind: kind, q: q}, nil
}

// stats snapshots the lane. Stream details are only read once the ready
// gate is open.
func (l *lane) stats(ready bool) StreamStats {
	st := StreamStats{
		Decoded:      l.decoded.Load(),
		Corrupt:      l.corrupt.Load(),
		DecodeErrors: l.decodeErrors.Load(),
		Delivered:    l.delivered.Load(),
		Dropped:      l.dropped.Load(),
		Late:         l.late.Load(),
		QueueDepth:   l.q.Len(),
		QueueCap:     l.q.Cap(),
	}
	if ready && l.present {
		st.Present = true
		st.Codec = l.info.Codec
		st.TimeBase = l.info.TimeBase.String()
		st.Width, st.Height = l.info.Width, l.info.Height
		st.SampleRate, st.Channels = l.info.SampleRate, l.info.Channels
	}
	return st
}

// releaseAll releases the frames carried by msgs.
func releaseAll(msgs []media.Message) {
	for _, m := range msgs {
		if m.Kind == media.MessageFrame {
			m.Frame.Release()
		}
	}
}
