// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/examcap/internal/eventlog"
	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/ManuGH/examcap/internal/metrics"
	"github.com/ManuGH/examcap/internal/monitor"
	"github.com/rs/zerolog"
)

// Status lines shown by a capture window.
const (
	StatusRequesting    = "Waiting for screen sharing permission..."
	StatusConsentFailed = "Sharing cancelled or error occurred."
	StatusRecording     = "Recording..."
	StatusProcessing    = "Processing video..."
	StatusFinalizeFail  = "Processing failed: the recording could not be saved."
)

const (
	DefaultCloseDelay    = 2 * time.Second
	DefaultDeriveTimeout = 10 * time.Minute
	DefaultFlushTimeout  = 30 * time.Second
)

// Surface is the window the runner reports to.
type Surface interface {
	Handle() string
	SetStatus(text string)
}

// FPSSource provides the capture frame rate. On error the returned value
// is still usable.
type FPSSource interface {
	FPS(ctx context.Context) (int, error)
}

// Deriver turns a finished recording into output files and returns the
// status line to show.
type Deriver interface {
	Derive(ctx context.Context, art *Artifact, events []eventlog.Entry) string
}

// WindowConfig wires a Runner.
type WindowConfig struct {
	Acquirer      Acquirer
	Settings      FPSSource
	Titles        monitor.TitleSource
	Bus           *messenger.Bus
	Deriver       Deriver
	Audio         bool
	TitleInterval time.Duration
	CloseDelay    time.Duration
	DeriveTimeout time.Duration
	FlushTimeout  time.Duration
	Now           func() time.Time
}

// Runner is the body of a capture window.
type Runner struct {
	cfg    WindowConfig
	logger zerolog.Logger
}

func NewRunner(cfg WindowConfig) *Runner {
	if cfg.TitleInterval <= 0 {
		cfg.TitleInterval = monitor.DefaultInterval
	}
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = DefaultCloseDelay
	}
	if cfg.DeriveTimeout <= 0 {
		cfg.DeriveTimeout = DefaultDeriveTimeout
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg, logger: xglog.WithComponent("capture")}
}

// Run records until ctx is cancelled (window closed) or the stream ends on
// its own, then derives the outputs. Returning closes the window.
func (r *Runner) Run(ctx context.Context, w Surface) error {
	id := messenger.ContextID(w.Handle())
	logger := xglog.WithContext(ctx, r.logger).With().Str(xglog.FieldWindow, w.Handle()).Logger()

	if _, err := r.cfg.Bus.Register(id, messenger.KindCapture); err != nil {
		return err
	}
	defer r.cfg.Bus.Unregister(id)

	fps, err := r.cfg.Settings.FPS(ctx)
	if err != nil {
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "capture.settings_failed").
			Int(xglog.FieldFPS, fps).
			Msg("could not read fps, using default")
	}

	w.SetStatus(StatusRequesting)
	stream, err := r.cfg.Acquirer.Acquire(ctx, Options{FPS: fps, Audio: r.cfg.Audio})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "capture.acquire_failed").
			Bool("permission", errors.Is(err, ErrPermission)).
			Msg("screen capture not acquired")
		w.SetStatus(StatusConsentFailed)
		r.linger(ctx)
		return nil
	}
	defer func() { _ = stream.Stop(context.Background()) }()

	session := NewSession(r.cfg.Now)
	start := session.Start(stream)
	logger.Info().
		Str(xglog.FieldEvent, "capture.recording").
		Int(xglog.FieldFPS, fps).
		Msg("recording started")

	r.announce(ctx, id, logger)
	w.SetStatus(StatusRecording)

	events := eventlog.New()
	titles := monitor.NewTitleMonitor(r.cfg.Titles, events, start, r.cfg.TitleInterval, r.cfg.Now)
	if err := titles.Seed(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "capture.seed_failed").Msg("initial title not recorded")
	}
	monCtx, stopMonitor := context.WithCancel(ctx)
	monDone := make(chan struct{})
	go func() {
		defer close(monDone)
		titles.Run(monCtx)
	}()

	trigger := "close"
	select {
	case <-ctx.Done():
	case <-stream.Ended():
		trigger = "stream_ended"
	}
	stopMonitor()
	<-monDone
	metrics.IncCaptureEnded(trigger)

	w.SetStatus(StatusProcessing)
	flushCtx, cancelFlush := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.FlushTimeout)
	art, err := session.Stop(flushCtx)
	cancelFlush()
	if errors.Is(err, ErrAlreadyFinalizing) {
		return nil
	}
	if art == nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "capture.finalize_failed").Msg("recording could not be finalized")
		w.SetStatus(StatusFinalizeFail)
		return err
	}
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "capture.stop_failed").Msg("capture source did not stop cleanly")
	}

	entries := events.Seal()
	logger.Info().
		Str(xglog.FieldEvent, "capture.finalized").
		Str("trigger", trigger).
		Int("bytes", art.Size()).
		Int("titles", len(entries)).
		Dur("duration", art.TotalDuration).
		Msg("recording finalized")

	deriveCtx, cancelDerive := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.DeriveTimeout)
	defer cancelDerive()
	w.SetStatus(r.cfg.Deriver.Derive(deriveCtx, art, entries))
	return nil
}

// announce tells the controller that sharing is live.
func (r *Runner) announce(ctx context.Context, id messenger.ContextID, logger zerolog.Logger) {
	msg, err := messenger.NewMessage(id, messenger.ControllerID, messenger.ActionRecordingActuallyStarted, nil)
	if err != nil {
		logger.Error().Err(err).Msg("build start notification")
		return
	}
	if out := r.cfg.Bus.Send(ctx, msg); !out.Delivered() {
		logger.Warn().
			Str(xglog.FieldEvent, "capture.announce_failed").
			Str(xglog.FieldOutcome, string(out)).
			Msg("controller not notified")
	}
}

// linger keeps the failure status visible for CloseDelay unless the window
// is closed first.
func (r *Runner) linger(ctx context.Context) {
	t := time.NewTimer(r.cfg.CloseDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
