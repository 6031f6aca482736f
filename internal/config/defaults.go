// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		DataDir:  "data",
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:      "127.0.0.1:8787",
			AllowedOrigins:  []string{"localhost", "127.0.0.1"},
			RateLimitRPS:    50,
			WSMessageRate:   20,
			WSMessageBurst:  40,
			ShutdownTimeout: 10 * time.Second,
		},
		Messenger: MessengerConfig{
			MailboxSize: 64,
			AckTimeout:  5 * time.Second,
		},
		Store: StoreConfig{
			Backend: "sqlite",
		},
		Capture: CaptureConfig{
			FFmpegBin:     "ffmpeg",
			InputFormat:   "x11grab",
			Display:       ":0.0",
			Audio:         true,
			VideoCodec:    "libvpx",
			Bitrate:       "2M",
			Consent:       "grant",
			DefaultFPS:    30,
			StartTimeout:  10 * time.Second,
			StopGrace:     5 * time.Second,
			CloseDelay:    2 * time.Second,
			TitleInterval: 500 * time.Millisecond,
		},
		Timelapse: TimelapseConfig{
			Mode:       "resample",
			Rate:       1.0,
			FPS:        30,
			VideoCodec: "libvpx",
		},
		Output: OutputConfig{
			DeriveTimeout: 10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
	}
}
