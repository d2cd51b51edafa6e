package statusapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zsiec/framepace/player"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeController struct {
	stats   player.Stats
	stopped atomic.Int32
}

func (f *fakeController) Stats() player.Stats { return f.stats }
func (f *fakeController) Stop()               { f.stopped.Add(1) }

func newServer(ctl Controller, opts ...Option) *Server {
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return New(ctl, opts...)
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := newServer(&fakeController{})
	w := do(t, s.Handler(), http.MethodGet, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["service"] != "framepace" {
		t.Errorf("body = %v", body)
	}
}

func TestSessionStats(t *testing.T) {
	t.Parallel()
	ctl := &fakeController{stats: player.Stats{
		SessionID: "abc",
		Backend:   "mpegts",
		State:     player.StateDecoding,
		Running:   true,
		Video:     player.StreamStats{Present: true, Codec: "h264", Width: 1280, Height: 720, Delivered: 42},
	}}
	s := newServer(ctl)
	w := do(t, s.Handler(), http.MethodGet, "/api/session")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got struct {
		SessionID string `json:"sessionId"`
		State     string `json:"state"`
		Running   bool   `json:"running"`
		Video     struct {
			Codec     string `json:"codec"`
			Width     int    `json:"width"`
			Delivered int64  `json:"delivered"`
		} `json:"video"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.SessionID != "abc" || !got.Running {
		t.Errorf("session = %+v", got)
	}
	if got.State != player.StateDecoding.String() {
		t.Errorf("state = %q, want %q", got.State, player.StateDecoding.String())
	}
	if got.Video.Codec != "h264" || got.Video.Width != 1280 || got.Video.Delivered != 42 {
		t.Errorf("video = %+v", got.Video)
	}
}

func TestStop(t *testing.T) {
	t.Parallel()
	ctl := &fakeController{stats: player.Stats{SessionID: "abc", Running: true}}
	s := newServer(ctl)

	w := do(t, s.Handler(), http.MethodPost, "/api/session/stop")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if got := ctl.stopped.Load(); got != 1 {
		t.Errorf("Stop calls = %d, want 1", got)
	}
}

func TestStopNotRunning(t *testing.T) {
	t.Parallel()
	ctl := &fakeController{}
	s := newServer(ctl)

	w := do(t, s.Handler(), http.MethodPost, "/api/session/stop")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if got := ctl.stopped.Load(); got != 0 {
		t.Errorf("Stop calls = %d, want 0", got)
	}
}

func TestStopRequiresPost(t *testing.T) {
	t.Parallel()
	ctl := &fakeController{stats: player.Stats{Running: true}}
	s := newServer(ctl)

	w := do(t, s.Handler(), http.MethodGet, "/api/session/stop")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if got := ctl.stopped.Load(); got != 0 {
		t.Errorf("Stop calls = %d, want 0", got)
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()
	s := newServer(&fakeController{})

	w := do(t, s.Handler(), http.MethodGet, "/healthz")
	if w.Header().Get(RequestIDHeader) == "" {
		t.Errorf("response lacks %s", RequestIDHeader)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "client-id-1" {
		t.Errorf("%s = %q, want client-id-1", RequestIDHeader, got)
	}
}

func TestRequestSpans(t *testing.T) {
	t.Parallel()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { tp.Shutdown(context.Background()) })

	s := newServer(&fakeController{}, WithTracer(tp.Tracer("test")))
	do(t, s.Handler(), http.MethodGet, "/api/session")

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got, want := spans[0].Name(), "GET /api/session"; got != want {
		t.Errorf("span name = %q, want %q", got, want)
	}
	var status int64
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "http.status_code" {
			status = kv.Value.AsInt64()
		}
	}
	if status != http.StatusOK {
		t.Errorf("http.status_code = %d, want 200", status)
	}
}

func TestServe(t *testing.T) {
	t.Parallel()
	s := newServer(&fakeController{})
	ctx, cancel := context.WithCancel(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, addr, nil) }()

	var resp *http.Response
	for range 100 {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		select {
		case e := <-errc:
			t.Fatalf("Serve: %v", e)
		default:
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	if err := <-errc; err != nil {
		t.Errorf("Serve returned %v after cancel", err)
	}
}
