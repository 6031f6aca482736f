// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by
// unknown keys.
var ErrUnknownConfigField = errors.New("unknown config field")

const envPrefix = "EXAMCAP_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path is the configured file, empty when running from ENV only.
func (l *Loader) Path() string { return l.configPath }

// Load applies defaults, the YAML file, the environment and validation in
// that order.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version
	resolvePaths(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Unknown fields are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) key(name string) string {
	k := envPrefix + name
	l.ConsumedEnvKeys[k] = struct{}{}
	return k
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.DataDir = ParseString(l.key("DATA_DIR"), cfg.DataDir)
	cfg.LogLevel = ParseString(l.key("LOG_LEVEL"), cfg.LogLevel)

	cfg.Server.ListenAddr = ParseString(l.key("LISTEN_ADDR"), cfg.Server.ListenAddr)
	cfg.Server.AllowedOrigins = ParseList(l.key("ALLOWED_ORIGINS"), cfg.Server.AllowedOrigins)
	cfg.Server.RateLimitRPS = ParseInt(l.key("RATE_LIMIT_RPS"), cfg.Server.RateLimitRPS)

	cfg.Messenger.MailboxSize = ParseInt(l.key("MAILBOX_SIZE"), cfg.Messenger.MailboxSize)
	cfg.Messenger.AckTimeout = ParseDuration(l.key("ACK_TIMEOUT"), cfg.Messenger.AckTimeout)

	cfg.Store.Backend = ParseString(l.key("STORE_BACKEND"), cfg.Store.Backend)
	cfg.Store.Path = ParseString(l.key("STORE_PATH"), cfg.Store.Path)
	cfg.Store.Redis.Addr = ParseString(l.key("REDIS_ADDR"), cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = ParseString(l.key("REDIS_PASSWORD"), cfg.Store.Redis.Password)
	cfg.Store.Redis.DB = ParseInt(l.key("REDIS_DB"), cfg.Store.Redis.DB)

	cfg.Capture.FFmpegBin = ParseString(l.key("FFMPEG_BIN"), cfg.Capture.FFmpegBin)
	cfg.Capture.InputFormat = ParseString(l.key("CAPTURE_INPUT_FORMAT"), cfg.Capture.InputFormat)
	cfg.Capture.Display = ParseString(l.key("CAPTURE_DISPLAY"), cfg.Capture.Display)
	cfg.Capture.Audio = ParseBool(l.key("CAPTURE_AUDIO"), cfg.Capture.Audio)
	cfg.Capture.AudioFormat = ParseString(l.key("CAPTURE_AUDIO_FORMAT"), cfg.Capture.AudioFormat)
	cfg.Capture.Consent = ParseString(l.key("CAPTURE_CONSENT"), cfg.Capture.Consent)
	cfg.Capture.DefaultFPS = ParseInt(l.key("DEFAULT_FPS"), cfg.Capture.DefaultFPS)
	cfg.Capture.CloseDelay = ParseDuration(l.key("CLOSE_DELAY"), cfg.Capture.CloseDelay)

	cfg.Timelapse.Mode = ParseString(l.key("TIMELAPSE_MODE"), cfg.Timelapse.Mode)
	cfg.Timelapse.Rate = ParseFloat(l.key("TIMELAPSE_RATE"), cfg.Timelapse.Rate)
	cfg.Timelapse.FFprobeBin = ParseString(l.key("FFPROBE_BIN"), cfg.Timelapse.FFprobeBin)

	cfg.Output.Dir = ParseString(l.key("OUTPUT_DIR"), cfg.Output.Dir)

	cfg.Telemetry.Enabled = ParseBool(l.key("OTEL_ENABLED"), cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString(l.key("OTEL_EXPORTER"), cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString(l.key("OTEL_ENDPOINT"), cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = ParseFloat(l.key("OTEL_SAMPLING_RATE"), cfg.Telemetry.SamplingRate)
}

// resolvePaths makes the data directory absolute and derives unset paths
// from it.
func resolvePaths(cfg *AppConfig) {
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Backend {
		case "sqlite", "":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "examcap.db")
		case "badger":
			cfg.Store.Path = filepath.Join(cfg.DataDir, "badger")
		}
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = filepath.Join(cfg.DataDir, "recordings")
	}
}
