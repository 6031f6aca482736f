// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package derive produces the output files of a finished recording: a
// timelapse video and an SRT caption track sharing one base name.
package derive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/examcap/internal/capture"
	"github.com/ManuGH/examcap/internal/eventlog"
	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/metrics"
	"github.com/ManuGH/examcap/internal/subtitle"
	"github.com/ManuGH/examcap/internal/telemetry"
	"github.com/ManuGH/examcap/internal/timelapse"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	StageTimelapse = "timelapse"
	StageSubtitle  = "subtitle"
)

var ErrNoOutputDir = errors.New("derive: output directory is required")

// Composer encodes the timelapse video.
type Composer interface {
	Compose(ctx context.Context, chunks [][]byte, output string) (timelapse.Result, error)
}

// Config wires a Pipeline.
type Config struct {
	OutputDir string
	Composer  Composer
	Tracer    trace.Tracer
}

// StageResult is the outcome of one derivation stage.
type StageResult struct {
	Stage string
	Path  string
	Bytes int64
	Took  time.Duration
	Err   error
}

// OK reports whether the stage produced its file.
func (s StageResult) OK() bool { return s.Err == nil && s.Path != "" }

// Report collects the stage outcomes of one recording.
type Report struct {
	BaseName  string
	Timelapse StageResult
	Subtitle  StageResult
}

// Summary is the status line shown to the user.
func (r Report) Summary() string {
	var saved []string
	var failed []string
	if r.Timelapse.OK() {
		saved = append(saved, filepath.Base(r.Timelapse.Path))
	} else {
		failed = append(failed, "timelapse video")
	}
	if r.Subtitle.OK() {
		saved = append(saved, filepath.Base(r.Subtitle.Path))
	} else {
		failed = append(failed, "captions")
	}

	switch {
	case len(failed) == 0:
		return fmt.Sprintf("Saved %s.", strings.Join(saved, " and "))
	case len(saved) == 0:
		return "Processing failed: no files were saved."
	default:
		return fmt.Sprintf("Saved %s. Could not create the %s.", saved[0], failed[0])
	}
}

// BaseName is the shared output name for a recording started at start.
func BaseName(start time.Time) string {
	return fmt.Sprintf("recording-%d", start.UnixMilli())
}

// Pipeline runs the derivation stages.
type Pipeline struct {
	dir      string
	composer Composer
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.OutputDir == "" {
		return nil, ErrNoOutputDir
	}
	if cfg.Composer == nil {
		return nil, errors.New("derive: composer is required")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("derive: create output directory: %w", err)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.Tracer("examcap/derive")
	}
	return &Pipeline{
		dir:      cfg.OutputDir,
		composer: cfg.Composer,
		tracer:   cfg.Tracer,
		logger:   xglog.WithComponent("derive"),
	}, nil
}

// Derive runs the pipeline and returns the user-facing summary.
func (p *Pipeline) Derive(ctx context.Context, art *capture.Artifact, entries []eventlog.Entry) string {
	return p.Run(ctx, art, entries).Summary()
}

// Run produces both outputs concurrently. A failing stage never cancels
// the other.
func (p *Pipeline) Run(ctx context.Context, art *capture.Artifact, entries []eventlog.Entry) Report {
	base := BaseName(art.StartTimestamp)
	ctx, span := p.tracer.Start(ctx, "derive.recording",
		trace.WithAttributes(telemetry.RecordingAttributes(base, art.Size(), art.TotalMillis(), len(entries))...))
	defer span.End()

	report := Report{BaseName: base}
	var g errgroup.Group
	g.Go(func() error {
		report.Timelapse = p.stage(ctx, StageTimelapse, filepath.Join(p.dir, base+"-timelapse.webm"), func(ctx context.Context, path string) error {
			chunks, err := art.Consume()
			if err != nil {
				return err
			}
			_, err = p.composer.Compose(ctx, chunks, path)
			return err
		})
		return nil
	})
	g.Go(func() error {
		report.Subtitle = p.stage(ctx, StageSubtitle, filepath.Join(p.dir, base+".srt"), func(_ context.Context, path string) error {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
			if err != nil {
				return err
			}
			if _, err := subtitle.Write(f, entries, art.TotalMillis()); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		})
		return nil
	})
	_ = g.Wait()

	if !report.Timelapse.OK() || !report.Subtitle.OK() {
		span.SetStatus(codes.Error, "derivation incomplete")
	}
	p.logger.Info().
		Str(xglog.FieldEvent, "derive.done").
		Str("base", base).
		Bool("timelapse", report.Timelapse.OK()).
		Bool("subtitle", report.Subtitle.OK()).
		Msg(report.Summary())
	return report
}

// stage writes one output through a renameio pending file so a failed
// stage never leaves a partial file under the final name.
func (p *Pipeline) stage(ctx context.Context, name, dest string, produce func(ctx context.Context, path string) error) StageResult {
	ctx, span := p.tracer.Start(ctx, "derive."+name, trace.WithAttributes(telemetry.StageAttributes(name, dest)...))
	defer span.End()
	logger := xglog.WithContext(ctx, p.logger).With().Str(xglog.FieldStage, name).Logger()

	started := time.Now()
	res := StageResult{Stage: name}
	err := p.write(ctx, dest, produce)
	res.Took = time.Since(started)
	metrics.ObserveDerivation(name, res.Took.Seconds(), err != nil)

	if err != nil {
		res.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(telemetry.ErrorAttributes(name)...)
		logger.Error().Err(err).Str(xglog.FieldEvent, "derive.stage_failed").Msg("derivation stage failed")
		return res
	}

	res.Path = dest
	if st, err := os.Stat(dest); err == nil {
		res.Bytes = st.Size()
	}
	logger.Info().
		Str(xglog.FieldEvent, "derive.stage_done").
		Str(xglog.FieldPath, dest).
		Int64("bytes", res.Bytes).
		Dur("took", res.Took).
		Msg("derivation stage finished")
	return res
}

func (p *Pipeline) write(ctx context.Context, dest string, produce func(ctx context.Context, path string) error) error {
	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	if err := produce(ctx, pending.Name()); err != nil {
		return err
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(dest), err)
	}
	return nil
}
