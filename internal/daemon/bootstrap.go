// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/examcap/internal/api"
	"github.com/ManuGH/examcap/internal/capture"
	"github.com/ManuGH/examcap/internal/config"
	"github.com/ManuGH/examcap/internal/coordinator"
	"github.com/ManuGH/examcap/internal/derive"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/ManuGH/examcap/internal/store"
	"github.com/ManuGH/examcap/internal/telemetry"
	"github.com/ManuGH/examcap/internal/timelapse"
	"github.com/ManuGH/examcap/internal/window"
)

const serviceName = "examcap"

// Runtime is the wired object graph of a running daemon.
type Runtime struct {
	Config      config.AppConfig
	Telemetry   *telemetry.Provider
	Store       store.Store
	Settings    *store.Settings
	Bus         *messenger.Bus
	Compositor  *timelapse.Compositor
	Windows     *window.Manager
	Coordinator *coordinator.Coordinator
	API         *api.Server
	Manager     *Manager
}

// Bootstrap wires every component from cfg. On error, whatever was already
// opened is closed again.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.close(context.WithoutCancel(ctx))
		}
	}()

	rt.Telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	rt.Store, err = store.Open(store.Options{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		Redis: store.RedisConfig{
			Addr:      cfg.Store.Redis.Addr,
			Password:  cfg.Store.Redis.Password,
			DB:        cfg.Store.Redis.DB,
			KeyPrefix: cfg.Store.Redis.KeyPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.Settings = store.NewSettings(rt.Store, cfg.Capture.DefaultFPS)
	rt.Bus = messenger.New(messenger.Options{
		MailboxSize: cfg.Messenger.MailboxSize,
		AckTimeout:  cfg.Messenger.AckTimeout,
	})

	rt.Compositor, err = timelapse.New(timelapse.Config{
		Bin:        cfg.Capture.FFmpegBin,
		ProbeBin:   cfg.Timelapse.FFprobeBin,
		Mode:       timelapse.Mode(cfg.Timelapse.Mode),
		Rate:       cfg.Timelapse.Rate,
		FPS:        cfg.Timelapse.FPS,
		VideoCodec: cfg.Timelapse.VideoCodec,
		Bitrate:    cfg.Capture.Bitrate,
	}, timelapse.NewExecRunner(cfg.Capture.StopGrace))
	if err != nil {
		return nil, fmt.Errorf("init timelapse: %w", err)
	}
	pipeline, err := derive.New(derive.Config{
		OutputDir: cfg.Output.Dir,
		Composer:  rt.Compositor,
		Tracer:    telemetry.Tracer(serviceName + "/derive"),
	})
	if err != nil {
		return nil, fmt.Errorf("init derive pipeline: %w", err)
	}

	audioFormat := cfg.Capture.AudioFormat
	if !cfg.Capture.Audio {
		audioFormat = ""
	}
	runner := capture.NewRunner(capture.WindowConfig{
		Acquirer: capture.NewFFmpegAcquirer(capture.FFmpegConfig{
			Bin:          cfg.Capture.FFmpegBin,
			InputFormat:  cfg.Capture.InputFormat,
			Display:      cfg.Capture.Display,
			AudioFormat:  audioFormat,
			AudioInput:   cfg.Capture.AudioInput,
			VideoCodec:   cfg.Capture.VideoCodec,
			Bitrate:      cfg.Capture.Bitrate,
			Consent:      cfg.Capture.Consent,
			StartTimeout: cfg.Capture.StartTimeout,
			StopGrace:    cfg.Capture.StopGrace,
		}),
		Settings:      rt.Settings,
		Titles:        rt.Settings,
		Bus:           rt.Bus,
		Deriver:       pipeline,
		Audio:         cfg.Capture.Audio,
		TitleInterval: cfg.Capture.TitleInterval,
		CloseDelay:    cfg.Capture.CloseDelay,
		DeriveTimeout: cfg.Output.DeriveTimeout,
	})
	rt.Windows = window.NewManager(func(ctx context.Context, w *window.Window) error {
		return runner.Run(ctx, w)
	})

	rt.Coordinator, err = coordinator.New(coordinator.Config{
		Bus:     rt.Bus,
		Windows: rt.Windows,
		Closed:  rt.Windows.Closed(),
		Titles:  rt.Settings,
	})
	if err != nil {
		return nil, fmt.Errorf("init coordinator: %w", err)
	}

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = serviceName
	}
	rt.API = api.New(api.Config{
		Bus:            rt.Bus,
		Session:        rt.Coordinator,
		Windows:        rt.Windows,
		Settings:       rt.Settings,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		WSMessageRate:  cfg.Server.WSMessageRate,
		WSMessageBurst: cfg.Server.WSMessageBurst,
		TracingService: tracing,
	})

	rt.Manager, err = NewManager(ServerConfig{
		ListenAddr:      cfg.Server.ListenAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, rt.API.Handler())
	if err != nil {
		return nil, err
	}
	// LIFO: remote contexts go first, the store and telemetry last.
	rt.Manager.RegisterShutdownHook("telemetry", rt.Telemetry.Shutdown)
	rt.Manager.RegisterShutdownHook("store", func(context.Context) error { return rt.Store.Close() })
	rt.Manager.RegisterShutdownHook("windows", rt.Windows.Shutdown)
	rt.Manager.RegisterShutdownHook("remote-contexts", func(context.Context) error {
		rt.API.Close()
		return nil
	})
	return rt, nil
}

// close releases components opened by a failed Bootstrap.
func (rt *Runtime) close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var errs []error
	if rt.Windows != nil {
		errs = append(errs, rt.Windows.Shutdown(ctx))
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	if rt.Telemetry != nil {
		errs = append(errs, rt.Telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
