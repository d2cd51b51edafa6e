// Package pacer maps presentation timestamps to wall-clock delivery times
// for a single stream.
package pacer

import (
	"context"
	"time"

	"github.com/zsiec/framepace/media"
)

// Result describes how a frame was scheduled.
type Result uint8

const (
	// Immediate frames carry no timestamp or sit exactly on the stream's
	// zero point. They are delivered without touching the anchor.
	Immediate Result = iota
	// OnTime frames were held until their target instant.
	OnTime
	// Late frames had already passed their target and are delivered at
	// once. They are never skipped.
	Late
)

func (r Result) String() string {
	switch r {
	case Immediate:
		return "immediate"
	case OnTime:
		return "on-time"
	case Late:
		return "late"
	default:
		return "unknown"
	}
}

// SleepFunc blocks for d or until ctx ends, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Pacer.
type Option func(*Pacer)

// WithClock replaces the wall clock and sleeper, for tests.
func WithClock(now func() time.Time, sleep SleepFunc) Option {
	return func(p *Pacer) {
		p.now = now
		p.sleep = sleep
	}
}

// Pacer holds the anchor for one stream. The first frame that needs pacing
// sets anchor = now; every later frame targets anchor + offset(pts). A Pacer
// is owned by one dispatch loop and is not safe for concurrent use.
type Pacer struct {
	zero     int64
	timeBase media.Rational
	now      func() time.Time
	sleep    SleepFunc

	anchor   time.Time
	anchored bool
}

// New returns a Pacer for the given stream.
func New(info media.StreamInfo, opts ...Option) *Pacer {
	p := &Pacer{
		zero:     info.ZeroPTS(),
		timeBase: info.TimeBase,
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Offset returns the wall-clock distance of pts from the stream's zero
// point.
func (p *Pacer) Offset(pts int64) time.Duration {
	return p.timeBase.Duration(pts - p.zero)
}

// Anchor returns the instant the first paced frame was released.
func (p *Pacer) Anchor() (time.Time, bool) {
	return p.anchor, p.anchored
}

// Wait blocks until the frame with the given pts is due. A stopped ctx
// interrupts the wait; the caller must then drop the frame.
func (p *Pacer) Wait(ctx context.Context, pts int64) (Result, error) {
	if pts == media.NoPTS || pts == p.zero || !p.timeBase.Valid() {
		return Immediate, nil
	}

	offset := p.Offset(pts)
	now := p.now()
	if !p.anchored {
		p.anchor = now
		p.anchored = true
	}

	target := p.anchor.Add(offset)
	if !now.Before(target) {
		if now.After(target) {
			return Late, nil
		}
		return OnTime, nil
	}

	if err := p.sleep(ctx, target.Sub(now)); err != nil {
		return OnTime, err
	}
	return OnTime, nil
}

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
