// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/rs/zerolog"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Validate reports every invalid setting at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		add("logLevel %q", cfg.LogLevel)
	}
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
		add("server.listenAddr %q: %v", cfg.Server.ListenAddr, err)
	}
	if cfg.Server.RateLimitRPS < 0 {
		add("server.rateLimitRPS must be >= 0")
	}
	if cfg.Server.WSMessageRate <= 0 || cfg.Server.WSMessageBurst <= 0 {
		add("server.wsMessageRate and server.wsMessageBurst must be positive")
	}
	if cfg.Messenger.MailboxSize < 1 {
		add("messenger.mailboxSize must be >= 1")
	}
	if cfg.Messenger.AckTimeout <= 0 {
		add("messenger.ackTimeout must be positive")
	}

	switch cfg.Store.Backend {
	case "memory", "sqlite", "badger":
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			add("store.redis.addr is required for the redis backend")
		}
	default:
		add("store.backend %q (want memory, sqlite, badger or redis)", cfg.Store.Backend)
	}

	if cfg.Capture.FFmpegBin == "" {
		add("capture.ffmpegBin is required")
	}
	if !slices.Contains([]string{"grant", "deny"}, cfg.Capture.Consent) {
		add("capture.consent %q (want grant or deny)", cfg.Capture.Consent)
	}
	if cfg.Capture.DefaultFPS < 1 || cfg.Capture.DefaultFPS > 120 {
		add("capture.defaultFPS %d out of range 1..120", cfg.Capture.DefaultFPS)
	}
	if cfg.Capture.TitleInterval <= 0 {
		add("capture.titleInterval must be positive")
	}

	if !slices.Contains([]string{"resample", "realtime"}, cfg.Timelapse.Mode) {
		add("timelapse.mode %q (want resample or realtime)", cfg.Timelapse.Mode)
	}
	if cfg.Timelapse.Rate < 1 {
		add("timelapse.rate %v must be >= 1", cfg.Timelapse.Rate)
	}
	if cfg.Timelapse.FPS < 1 {
		add("timelapse.fps must be >= 1")
	}
	if cfg.Output.Dir == "" {
		add("output.dir is required")
	}

	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Exporter != "grpc" && cfg.Telemetry.Exporter != "http" {
			add("telemetry.exporter %q (want grpc or http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			add("telemetry.samplingRate must be within 0..1")
		}
	}
	return errors.Join(errs...)
}
