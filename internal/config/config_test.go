package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framepace.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Backend != want.Backend || cfg.VideoQueue != 60 || cfg.AudioQueue != 120 {
		t.Errorf("got %+v, want defaults %+v", *cfg, want)
	}
	if cfg.Audio.Buffer != 1000 || cfg.Status.Addr != "" {
		t.Errorf("audio/status: got %+v / %+v", cfg.Audio, cfg.Status)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
backend: ffmpeg
video_queue: 8
audio:
  enabled: true
  buffer: 50
status:
  addr: 127.0.0.1:9090
  tls: true
tracing:
  stdout: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendFFmpeg || cfg.VideoQueue != 8 {
		t.Errorf("backend/video_queue: got %q/%d", cfg.Backend, cfg.VideoQueue)
	}
	if cfg.AudioQueue != 120 {
		t.Errorf("audio_queue should keep its default, got %d", cfg.AudioQueue)
	}
	if !cfg.Audio.Enabled || cfg.Audio.Buffer != 50 {
		t.Errorf("audio: got %+v", cfg.Audio)
	}
	if cfg.Status.Addr != "127.0.0.1:9090" || !cfg.Status.TLS || cfg.Status.CertValidityH != 336 {
		t.Errorf("status: got %+v", cfg.Status)
	}
	if !cfg.Tracing.Stdout || cfg.Tracing.ServiceName != "framepace" {
		t.Errorf("tracing: got %+v", cfg.Tracing)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "backend: ffmpeg\nvideo_queue: 8\n")
	t.Setenv("FRAMEPACE_BACKEND", "mpegts")
	t.Setenv("FRAMEPACE_VIDEO_QUEUE", "4")
	t.Setenv("FRAMEPACE_AUDIO_QUEUE", "16")
	t.Setenv("FRAMEPACE_AUDIO_OUT", "true")
	t.Setenv("FRAMEPACE_STATUS_ADDR", ":8081")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendMPEGTS || cfg.VideoQueue != 4 || cfg.AudioQueue != 16 {
		t.Errorf("got backend %q queues %d/%d", cfg.Backend, cfg.VideoQueue, cfg.AudioQueue)
	}
	if !cfg.Audio.Enabled || cfg.Status.Addr != ":8081" {
		t.Errorf("audio %v status %q", cfg.Audio.Enabled, cfg.Status.Addr)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{"unknown backend", "backend: gstreamer\n", nil, "backend must be"},
		{"zero video queue", "video_queue: 0\n", nil, "video_queue"},
		{"negative audio queue", "audio_queue: -1\n", nil, "audio_queue"},
		{"bad yaml", "backend: [\n", nil, "failed to parse config"},
		{"bad env int", "", map[string]string{"FRAMEPACE_VIDEO_QUEUE": "lots"}, "FRAMEPACE_VIDEO_QUEUE"},
		{"bad env bool", "", map[string]string{"FRAMEPACE_AUDIO_OUT": "loud"}, "FRAMEPACE_AUDIO_OUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
