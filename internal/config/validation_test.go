// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	cfg := Defaults()
	cfg.Output.Dir = "/tmp/recordings"
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"fps too low", func(c *AppConfig) { c.Capture.DefaultFPS = 0 }, "capture.defaultFPS"},
		{"fps too high", func(c *AppConfig) { c.Capture.DefaultFPS = 121 }, "capture.defaultFPS"},
		{"rate below one", func(c *AppConfig) { c.Timelapse.Rate = 0.9 }, "timelapse.rate"},
		{"unknown mode", func(c *AppConfig) { c.Timelapse.Mode = "fast" }, "timelapse.mode"},
		{"unknown consent", func(c *AppConfig) { c.Capture.Consent = "maybe" }, "capture.consent"},
		{"unknown backend", func(c *AppConfig) { c.Store.Backend = "etcd" }, "store.backend"},
		{"redis without addr", func(c *AppConfig) { c.Store.Backend = "redis" }, "store.redis.addr"},
		{"bad listen addr", func(c *AppConfig) { c.Server.ListenAddr = "nope" }, "server.listenAddr"},
		{"bad log level", func(c *AppConfig) { c.LogLevel = "loud" }, "logLevel"},
		{"zero mailbox", func(c *AppConfig) { c.Messenger.MailboxSize = 0 }, "messenger.mailboxSize"},
		{"bad exporter", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.Exporter = "zipkin"
		}, "telemetry.exporter"},
		{"bad sampling", func(c *AppConfig) {
			c.Telemetry.Enabled = true
			c.Telemetry.SamplingRate = 2
		}, "telemetry.samplingRate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateJoinsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Capture.DefaultFPS = 0
	cfg.Timelapse.Mode = "x"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture.defaultFPS")
	assert.Contains(t, err.Error(), "timelapse.mode")
}
