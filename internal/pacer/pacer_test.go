package pacer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zsiec/framepace/media"
)

// fakeClock advances only when the pacer sleeps or the test calls advance.
type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPacer(info media.StreamInfo) (*Pacer, *fakeClock) {
	c := newFakeClock()
	return New(info, WithClock(c.now, c.sleep)), c
}

func TestWaitNoPTSIsImmediate(t *testing.T) {
	t.Parallel()

	p, c := newTestPacer(media.StreamInfo{TimeBase: media.Rational{Num: 1, Den: 30}})
	r, err := p.Wait(context.Background(), media.NoPTS)
	if err != nil || r != Immediate {
		t.Fatalf("Wait(NoPTS) = %v, %v, want immediate", r, err)
	}
	if _, ok := p.Anchor(); ok {
		t.Error("NoPTS frame must not set the anchor")
	}
	if len(c.sleeps) != 0 {
		t.Errorf("slept %v, want no sleeps", c.sleeps)
	}
}

func TestWaitZeroPointIsImmediate(t *testing.T) {
	t.Parallel()

	p, _ := newTestPacer(media.StreamInfo{
		TimeBase: media.Rational{Num: 1, Den: 90000},
		StartPTS: 126000,
	})
	r, err := p.Wait(context.Background(), 126000)
	if err != nil || r != Immediate {
		t.Fatalf("Wait(zero point) = %v, %v, want immediate", r, err)
	}
	if _, ok := p.Anchor(); ok {
		t.Error("zero-point frame must not set the anchor")
	}
}

func TestWaitThirtyFPS(t *testing.T) {
	t.Parallel()

	p, c := newTestPacer(media.StreamInfo{TimeBase: media.Rational{Num: 1, Den: 30}})
	ctx := context.Background()

	if r, _ := p.Wait(ctx, 0); r != Immediate {
		t.Fatalf("frame 0 = %v, want immediate", r)
	}

	start := c.now()
	for pts := int64(1); pts <= 30; pts++ {
		if _, err := p.Wait(ctx, pts); err != nil {
			t.Fatalf("Wait(%d): %v", pts, err)
		}
	}

	anchor, ok := p.Anchor()
	if !ok || !anchor.Equal(start) {
		t.Fatalf("anchor = %v, %v, want %v", anchor, ok, start)
	}

	// Frame 30 must not be released before anchor + 1s.
	if got := c.now().Sub(anchor); got < time.Second-time.Millisecond {
		t.Errorf("frame 30 released %v after anchor, want >= ~1s", got)
	}
}

func TestWaitMonotonicDelivery(t *testing.T) {
	t.Parallel()

	p, c := newTestPacer(media.StreamInfo{TimeBase: media.Rational{Num: 1, Den: 1000}})
	ctx := context.Background()

	var last time.Time
	for _, pts := range []int64{10, 20, 40, 80, 160} {
		if _, err := p.Wait(ctx, pts); err != nil {
			t.Fatal(err)
		}
		if c.now().Before(last) {
			t.Fatalf("delivery time went backwards at pts %d", pts)
		}
		last = c.now()
	}

	anchor, _ := p.Anchor()
	// The anchor is taken at pts 10, so pts 160 is due 160ms later.
	if got := c.now().Sub(anchor); got != 160*time.Millisecond {
		t.Errorf("pts 160 released at anchor+%v, want anchor+160ms", got)
	}
}

func TestWaitLateFrameDeliveredImmediately(t *testing.T) {
	t.Parallel()

	p, c := newTestPacer(media.StreamInfo{TimeBase: media.Rational{Num: 1, Den: 1000}})
	ctx := context.Background()

	if _, err := p.Wait(ctx, 100); err != nil {
		t.Fatal(err)
	}
	sleeps := len(c.sleeps)

	// The consumer stalls well past the next frame's target.
	c.advance(time.Second)

	r, err := p.Wait(ctx, 200)
	if err != nil {
		t.Fatal(err)
	}
	if r != Late {
		t.Errorf("result = %v, want late", r)
	}
	if len(c.sleeps) != sleeps {
		t.Error("late frame must not sleep")
	}
}

func TestWaitInterrupted(t *testing.T) {
	t.Parallel()

	p := New(media.StreamInfo{TimeBase: media.Rational{Num: 1, Den: 1}})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx, 3600)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait was not interrupted")
	}
}

func TestWaitInvalidTimeBase(t *testing.T) {
	t.Parallel()

	p, _ := newTestPacer(media.StreamInfo{})
	if r, err := p.Wait(context.Background(), 500); r != Immediate || err != nil {
		t.Errorf("Wait with invalid time base = %v, %v, want immediate", r, err)
	}
}

func TestSleep(t *testing.T) {
	t.Parallel()

	start := time.Now()
	if err := Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if got := time.Since(start); got < 10*time.Millisecond {
		t.Errorf("Sleep returned after %v, want >= 10ms", got)
	}
}
