// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the examcap components and owns their lifecycle.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/examcap/internal/config"
	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/timelapse"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App owns the long-lived runtime lifecycle (coordinator loop, config
// watcher, reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	rt           *Runtime
	cfgHolder    *config.Holder
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(rt *Runtime, cfgHolder *config.Holder) (*App, error) {
	if rt == nil || rt.Manager == nil {
		return nil, ErrMissingRuntime
	}
	return &App{
		logger:       xglog.WithComponent("daemon"),
		rt:           rt,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}, nil
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(gctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	// SIGHUP trigger for manual reload.
	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")
					if err := a.cfgHolder.Reload(gctx); err != nil {
						a.logger.Warn().Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		return a.rt.Coordinator.Run(gctx)
	})

	// Main server lifecycle; runs the shutdown hooks on the way out.
	g.Go(func() error {
		return a.rt.Manager.Start(gctx)
	})

	return g.Wait()
}

// apply hot-swaps the settings that can change without a restart.
func (a *App) apply(cfg config.AppConfig) {
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
		a.logger.Info().
			Str(xglog.FieldEvent, "config.applied").
			Str("log_level", level.String()).
			Msg("log level updated")
	}
	// Read again at the next capture start.
	a.rt.Settings.SetDefaultFPS(cfg.Capture.DefaultFPS)
	if err := a.rt.Compositor.Retime(timelapse.Mode(cfg.Timelapse.Mode), cfg.Timelapse.Rate, cfg.Timelapse.FPS); err != nil {
		a.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "config.apply_failed").
			Msg("timelapse settings not applied")
	} else {
		a.logger.Info().
			Str(xglog.FieldEvent, "config.applied").
			Str("timelapse_mode", cfg.Timelapse.Mode).
			Float64(xglog.FieldRate, cfg.Timelapse.Rate).
			Int(xglog.FieldFPS, cfg.Capture.DefaultFPS).
			Msg("capture settings updated for the next recording")
	}
	if cfg.Server.ListenAddr != a.rt.Config.Server.ListenAddr || cfg.Store.Backend != a.rt.Config.Store.Backend {
		a.logger.Warn().
			Str(xglog.FieldEvent, "config.restart_required").
			Msg("listener or store changes take effect after a restart")
	}
}
