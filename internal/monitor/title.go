// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/examcap/internal/eventlog"
	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/rs/zerolog"
)

// TitleSource exposes the most recently observed page title.
type TitleSource interface {
	LatestTitle(ctx context.Context) (string, bool, error)
}

// TitleMonitor appends page title transitions to an event log while a
// capture session is running.
type TitleMonitor struct {
	src     TitleSource
	events  *eventlog.Log
	sampler *Sampler[string]
	logger  zerolog.Logger
}

// NewTitleMonitor binds a sampler to src and events. start is the capture
// start instant that elapsed times are measured from.
func NewTitleMonitor(src TitleSource, events *eventlog.Log, start time.Time, interval time.Duration, now func() time.Time) *TitleMonitor {
	m := &TitleMonitor{
		src:    src,
		events: events,
		logger: xglog.WithComponent("monitor"),
	}
	m.sampler = NewSampler(SamplerConfig[string]{
		Interval: interval,
		Equal:    func(a, b string) bool { return a == b },
		Accept:   func(s string) bool { return s != "" },
		Source:   src.LatestTitle,
		Record:   m.record,
		Start:    start,
		Now:      now,
	})
	return m
}

func (m *TitleMonitor) record(elapsed time.Duration, title string) error {
	if err := m.events.Append(eventlog.Entry{ElapsedMillis: elapsed.Milliseconds(), Text: title}); err != nil {
		return fmt.Errorf("record title: %w", err)
	}
	m.logger.Debug().
		Str(xglog.FieldEvent, "monitor.title_changed").
		Int64("elapsed_ms", elapsed.Milliseconds()).
		Str("title", title).
		Msg("title transition recorded")
	return nil
}

// Seed records the title already known at session start as entry zero.
func (m *TitleMonitor) Seed(ctx context.Context) error {
	title, ok, err := m.src.LatestTitle(ctx)
	if err != nil {
		return fmt.Errorf("seed title: %w", err)
	}
	if !ok {
		return nil
	}
	_, err = m.sampler.Seed(title)
	return err
}

// Poll samples the title once.
func (m *TitleMonitor) Poll(ctx context.Context) (bool, error) {
	return m.sampler.Poll(ctx)
}

// Run polls until ctx is cancelled.
func (m *TitleMonitor) Run(ctx context.Context) {
	m.sampler.Run(ctx, func(err error) {
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, "monitor.poll_failed").Msg("title poll failed")
	})
}
