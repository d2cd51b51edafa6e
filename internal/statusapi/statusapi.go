// Package statusapi serves a small JSON API for inspecting and stopping a
// running playback session.
package statusapi

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zsiec/framepace/player"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Controller is the session surface the API exposes.
type Controller interface {
	Stats() player.Stats
	Stop()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// Server routes status requests to a Controller.
type Server struct {
	ctl    Controller
	log    *slog.Logger
	tracer trace.Tracer
	engine *gin.Engine
}

// New builds the router for ctl.
func New(ctl Controller, opts ...Option) *Server {
	s := &Server{
		ctl:    ctl,
		log:    slog.Default(),
		tracer: otel.Tracer("github.com/zsiec/framepace/statusapi"),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "statusapi")

	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.traceRequests(), s.logRequests())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "framepace",
		})
	})
	r.GET("/api/session", s.handleSession)
	r.POST("/api/session/stop", s.handleStop)

	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Stats())
}

func (s *Server) handleStop(c *gin.Context) {
	st := s.ctl.Stats()
	if !st.Running {
		c.JSON(http.StatusConflict, gin.H{"error": "session is not running"})
		return
	}
	s.log.Info("stop requested", "requestId", c.GetString("requestId"), "session", st.SessionID)
	s.ctl.Stop()
	c.JSON(http.StatusAccepted, gin.H{"stopping": true, "sessionId": st.SessionID})
}

// requestID keeps an incoming X-Request-ID or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestId", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) traceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := s.tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethodKey.String(c.Request.Method),
				semconv.HTTPTargetKey.String(c.Request.URL.Path),
				semconv.HTTPRouteKey.String(route),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"requestId", c.GetString("requestId"))
	}
}

// Serve listens on addr until ctx is cancelled. A non-nil tlsConfig serves
// HTTPS.
func (s *Server) Serve(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("status API listening", "addr", ln.Addr().String(), "tls", tlsConfig != nil)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
