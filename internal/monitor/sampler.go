// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package monitor provides a change-detecting sampler and the title monitor
// built on top of it.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 500 * time.Millisecond

var ErrNoSource = errors.New("sampler has no source")

// Source yields the current value of the observed signal. ok=false means no
// value is available yet.
type Source[T any] func(ctx context.Context) (value T, ok bool, err error)

// RecordFunc receives every accepted transition with its offset from the
// sampler start.
type RecordFunc[T any] func(elapsed time.Duration, value T) error

// SamplerConfig parameterizes a Sampler.
type SamplerConfig[T any] struct {
	Interval time.Duration
	Equal    func(a, b T) bool
	// Accept filters values before comparison; nil accepts everything.
	Accept func(T) bool
	Source Source[T]
	Record RecordFunc[T]
	Start  time.Time
	Now    func() time.Time
}

// Sampler polls a source at a fixed interval and records a value only when
// it differs from the last recorded value. Repeated polls of an unchanged
// value are ignored.
type Sampler[T any] struct {
	cfg SamplerConfig[T]

	mu       sync.Mutex
	last     T
	recorded bool
}

func NewSampler[T any](cfg SamplerConfig[T]) *Sampler[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Start.IsZero() {
		cfg.Start = cfg.Now()
	}
	return &Sampler[T]{cfg: cfg}
}

// Seed records v at offset zero if nothing has been recorded yet.
func (s *Sampler[T]) Seed(v T) (bool, error) {
	return s.observe(0, v)
}

// Observe applies a sampled value taken at the given instant.
func (s *Sampler[T]) Observe(at time.Time, v T) (bool, error) {
	elapsed := at.Sub(s.cfg.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	return s.observe(elapsed, v)
}

func (s *Sampler[T]) observe(elapsed time.Duration, v T) (bool, error) {
	if s.cfg.Accept != nil && !s.cfg.Accept(v) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded && s.cfg.Equal(s.last, v) {
		return false, nil
	}
	if s.cfg.Record != nil {
		if err := s.cfg.Record(elapsed, v); err != nil {
			return false, err
		}
	}
	s.last = v
	s.recorded = true
	return true, nil
}

// Poll reads the source once and records a transition if there is one.
func (s *Sampler[T]) Poll(ctx context.Context) (bool, error) {
	if s.cfg.Source == nil {
		return false, ErrNoSource
	}
	v, ok, err := s.cfg.Source(ctx)
	if err != nil || !ok {
		return false, err
	}
	return s.Observe(s.cfg.Now(), v)
}

// Last returns the last recorded value.
func (s *Sampler[T]) Last() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.recorded
}

// Run polls until ctx is cancelled. Poll errors are passed to onErr and do
// not stop the loop.
func (s *Sampler[T]) Run(ctx context.Context, onErr func(error)) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Poll(ctx); err != nil && onErr != nil && ctx.Err() == nil {
				onErr(err)
			}
		}
	}
}
