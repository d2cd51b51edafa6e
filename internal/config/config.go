// Package config loads the framepace CLI configuration from an optional
// YAML file and FRAMEPACE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/zsiec/framepace/media"
)

// Backend names accepted in Config.Backend.
const (
	BackendMPEGTS = "mpegts"
	BackendFFmpeg = "ffmpeg"
)

// Config is the complete CLI configuration.
type Config struct {
	Backend    string        `yaml:"backend"`
	VideoQueue int           `yaml:"video_queue"`
	AudioQueue int           `yaml:"audio_queue"`
	Audio      AudioConfig   `yaml:"audio"`
	Status     StatusConfig  `yaml:"status"`
	Tracing    TracingConfig `yaml:"tracing"`
}

// AudioConfig controls local audio output.
type AudioConfig struct {
	Enabled bool `yaml:"enabled"`
	Buffer  int  `yaml:"buffer"` // frames held between the session and the device
}

// StatusConfig controls the HTTP status API. An empty Addr disables it.
type StatusConfig struct {
	Addr          string `yaml:"addr"`
	TLS           bool   `yaml:"tls"`
	CertValidityH int    `yaml:"cert_validity_h"`
}

// TracingConfig selects an OpenTelemetry exporter. With neither set,
// tracing is off.
type TracingConfig struct {
	Stdout       bool   `yaml:"stdout"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Backend:    BackendMPEGTS,
		VideoQueue: media.VideoQueueSize,
		AudioQueue: media.AudioQueueSize,
		Audio:      AudioConfig{Buffer: 1000},
		Status:     StatusConfig{CertValidityH: 14 * 24},
		Tracing:    TracingConfig{ServiceName: "framepace"},
	}
}

// Load returns the defaults, overlaid with the YAML file at path (if path is
// not empty) and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Backend = envOr("FRAMEPACE_BACKEND", c.Backend)
	c.Status.Addr = envOr("FRAMEPACE_STATUS_ADDR", c.Status.Addr)
	c.Tracing.OTLPEndpoint = envOr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)

	var err error
	if c.VideoQueue, err = envInt("FRAMEPACE_VIDEO_QUEUE", c.VideoQueue); err != nil {
		return err
	}
	if c.AudioQueue, err = envInt("FRAMEPACE_AUDIO_QUEUE", c.AudioQueue); err != nil {
		return err
	}
	if c.Audio.Enabled, err = envBool("FRAMEPACE_AUDIO_OUT", c.Audio.Enabled); err != nil {
		return err
	}
	if c.Tracing.Stdout, err = envBool("FRAMEPACE_OTEL_STDOUT", c.Tracing.Stdout); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMPEGTS, BackendFFmpeg:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendMPEGTS, BackendFFmpeg, c.Backend)
	}
	if c.VideoQueue < 1 {
		return fmt.Errorf("video_queue must be > 0")
	}
	if c.AudioQueue < 1 {
		return fmt.Errorf("audio_queue must be > 0")
	}
	if c.Audio.Enabled && c.Audio.Buffer < 1 {
		return fmt.Errorf("audio.buffer must be > 0")
	}
	if c.Status.TLS && c.Status.CertValidityH <= 0 {
		c.Status.CertValidityH = 14 * 24
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "framepace"
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
