// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads daemon configuration: defaults, then a strict YAML
// file, then EXAMCAP_* environment variables, then validation.
package config

import "time"

// AppConfig is the effective daemon configuration.
type AppConfig struct {
	Version  string `yaml:"-"`
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Server    ServerConfig    `yaml:"server"`
	Messenger MessengerConfig `yaml:"messenger"`
	Store     StoreConfig     `yaml:"store"`
	Capture   CaptureConfig   `yaml:"capture"`
	Timelapse TimelapseConfig `yaml:"timelapse"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP/WebSocket control surface.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	RateLimitRPS    int           `yaml:"rateLimitRPS"`
	WSMessageRate   float64       `yaml:"wsMessageRate"`
	WSMessageBurst  int           `yaml:"wsMessageBurst"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// MessengerConfig bounds the context mailboxes.
type MessengerConfig struct {
	MailboxSize int           `yaml:"mailboxSize"`
	AckTimeout  time.Duration `yaml:"ackTimeout"`
}

// StoreConfig selects the settings/title store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// CaptureConfig configures the ffmpeg screen source and the capture window.
type CaptureConfig struct {
	FFmpegBin     string        `yaml:"ffmpegBin"`
	InputFormat   string        `yaml:"inputFormat"`
	Display       string        `yaml:"display"`
	Audio         bool          `yaml:"audio"`
	AudioFormat   string        `yaml:"audioFormat"`
	AudioInput    string        `yaml:"audioInput"`
	VideoCodec    string        `yaml:"videoCodec"`
	Bitrate       string        `yaml:"bitrate"`
	Consent       string        `yaml:"consent"`
	DefaultFPS    int           `yaml:"defaultFPS"`
	StartTimeout  time.Duration `yaml:"startTimeout"`
	StopGrace     time.Duration `yaml:"stopGrace"`
	CloseDelay    time.Duration `yaml:"closeDelay"`
	TitleInterval time.Duration `yaml:"titleInterval"`
}

// TimelapseConfig configures the timelapse re-encode.
type TimelapseConfig struct {
	Mode       string  `yaml:"mode"`
	Rate       float64 `yaml:"rate"`
	FPS        int     `yaml:"fps"`
	FFprobeBin string  `yaml:"ffprobeBin"`
	VideoCodec string  `yaml:"videoCodec"`
}

// OutputConfig controls where derived files go.
type OutputConfig struct {
	Dir           string        `yaml:"dir"`
	DeriveTimeout time.Duration `yaml:"deriveTimeout"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}
