// Command framepace plays a media file in real time: frames are decoded,
// paced against the wall clock and handed to a logging sink, with optional
// audio output and an HTTP status API.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/framepace/codec"
	"github.com/zsiec/framepace/demux"
	"github.com/zsiec/framepace/ffmpeg"
	"github.com/zsiec/framepace/internal/certs"
	"github.com/zsiec/framepace/internal/config"
	"github.com/zsiec/framepace/internal/otelutil"
	"github.com/zsiec/framepace/internal/statusapi"
	"github.com/zsiec/framepace/player"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	configPath := flag.String("config", "", "YAML configuration file")
	backendName := flag.String("backend", "", "Demux/decode backend: mpegts or ffmpeg (overrides config)")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: framepace [flags] <file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *backendName != "" {
		cfg.Backend = *backendName
		if err := cfg.Validate(); err != nil {
			slog.Error("invalid backend", "error", err)
			os.Exit(1)
		}
	}

	if err := run(cfg, flag.Arg(0)); err != nil {
		slog.Error("playback failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, path string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := otelutil.Init(ctx, cfg.Tracing, nil)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	sess := player.New(newBackend(cfg.Backend),
		player.WithLogger(slog.Default()),
		player.WithVideoQueueSize(cfg.VideoQueue),
		player.WithAudioQueueSize(cfg.AudioQueue),
	)

	pb, err := newPlayback(sess, cfg.Audio)
	if err != nil {
		return err
	}
	defer pb.Close()
	if err := sess.Register(pb); err != nil {
		return err
	}

	slog.Info("framepace starting",
		"version", version,
		"file", path,
		"backend", cfg.Backend,
		"audio", cfg.Audio.Enabled,
		"status", cfg.Status.Addr,
	)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Status.Addr != "" {
		tlsConfig, err := statusTLS(cfg.Status)
		if err != nil {
			return err
		}
		api := statusapi.New(controller{sess, cancel}, statusapi.WithLogger(slog.Default()))
		g.Go(func() error {
			if err := api.Serve(ctx, cfg.Status.Addr, tlsConfig); err != nil {
				return fmt.Errorf("status API: %w", err)
			}
			return nil
		})
	}

	if err := sess.Start(ctx, path); err != nil {
		cancel()
		g.Wait()
		return err
	}

	g.Go(func() error {
		var runErr error
		select {
		case <-ctx.Done():
			slog.Info("stopping playback")
		case <-pb.Finished():
			slog.Info("playback finished")
		case runErr = <-pb.Errors():
		}
		sess.Stop()
		cancel()
		return runErr
	})

	err = g.Wait()
	logSummary(sess.Stats(), pb)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newBackend(name string) codec.Backend {
	if name == config.BackendFFmpeg {
		return ffmpeg.NewBackend(slog.Default())
	}
	return demux.NewBackend(slog.Default())
}

func statusTLS(cfg config.StatusConfig) (*tls.Config, error) {
	if !cfg.TLS {
		return nil, nil
	}
	cert, err := certs.Generate(time.Duration(cfg.CertValidityH) * time.Hour)
	if err != nil {
		return nil, fmt.Errorf("generating certificate: %w", err)
	}
	slog.Info("certificate generated",
		"fingerprint", cert.FingerprintBase64(),
		"expires", cert.NotAfter.Format(time.RFC3339),
	)
	return cert.TLSConfig(), nil
}

// controller lets the status API stop playback through the same path as a
// signal, so the session is stopped from the main goroutine rather than
// from an HTTP handler.
type controller struct {
	sess   *player.Session
	cancel context.CancelFunc
}

func (c controller) Stats() player.Stats { return c.sess.Stats() }
func (c controller) Stop()               { c.cancel() }

func logSummary(st player.Stats, pb *playback) {
	args := []any{"session", st.SessionID, "state", st.State, "uptime", time.Duration(st.UptimeMs) * time.Millisecond}
	if st.Video.Present {
		args = append(args,
			"videoDelivered", st.Video.Delivered,
			"videoLate", st.Video.Late,
			"videoDropped", st.Video.Dropped,
			"keyframes", pb.keyframes.Load(),
			"captions", pb.captions.Load())
	}
	if st.Audio.Present {
		args = append(args,
			"audioDelivered", st.Audio.Delivered,
			"audioLate", st.Audio.Late,
			"audioDropped", st.Audio.Dropped)
	}
	slog.Info("playback summary", args...)
}
