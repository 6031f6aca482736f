// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/rs/zerolog"
)

const (
	MinFPS     = 1
	MaxFPS     = 120
	DefaultFPS = 30
)

var ErrInvalidFPS = errors.New("fps out of range")

// ValidateFPS checks that fps is within [MinFPS, MaxFPS].
func ValidateFPS(fps int) error {
	if fps < MinFPS || fps > MaxFPS {
		return fmt.Errorf("%w: %d (want %d..%d)", ErrInvalidFPS, fps, MinFPS, MaxFPS)
	}
	return nil
}

// Settings adds typed accessors on top of a Store.
type Settings struct {
	store      Store
	defaultFPS atomic.Int64
	logger     zerolog.Logger
}

// NewSettings wraps s. A defaultFPS outside the valid range falls back to
// DefaultFPS.
func NewSettings(s Store, defaultFPS int) *Settings {
	st := &Settings{store: s, logger: xglog.WithComponent("store")}
	st.SetDefaultFPS(defaultFPS)
	return st
}

// SetDefaultFPS changes the rate used when none is stored. Values outside
// the valid range fall back to DefaultFPS.
func (s *Settings) SetDefaultFPS(fps int) {
	if ValidateFPS(fps) != nil {
		fps = DefaultFPS
	}
	s.defaultFPS.Store(int64(fps))
}

// DefaultFPS returns the rate used when none is stored.
func (s *Settings) DefaultFPS() int { return int(s.defaultFPS.Load()) }

// Store returns the wrapped store.
func (s *Settings) Store() Store { return s.store }

// FPS returns the stored capture frame rate. Missing or unreadable values
// yield the default; a storage failure is returned alongside the default.
func (s *Settings) FPS(ctx context.Context) (int, error) {
	def := s.DefaultFPS()
	raw, ok, err := s.store.Get(ctx, KeyFPS)
	if err != nil {
		return def, fmt.Errorf("read fps: %w", err)
	}
	if !ok {
		return def, nil
	}
	fps, convErr := strconv.Atoi(strings.TrimSpace(raw))
	if convErr != nil || ValidateFPS(fps) != nil {
		s.logger.Warn().
			Str(xglog.FieldEvent, "settings.invalid_fps").
			Str("value", raw).
			Int("default", def).
			Msg("stored fps is invalid, using default")
		return def, nil
	}
	return fps, nil
}

// SetFPS validates and stores the capture frame rate.
func (s *Settings) SetFPS(ctx context.Context, fps int) error {
	if err := ValidateFPS(fps); err != nil {
		return err
	}
	if err := s.store.Set(ctx, KeyFPS, strconv.Itoa(fps)); err != nil {
		return fmt.Errorf("write fps: %w", err)
	}
	s.logger.Info().Str(xglog.FieldEvent, "settings.saved").Int(xglog.FieldFPS, fps).Msg("fps saved")
	return nil
}

// LatestTitle returns the last title reported by an observer.
func (s *Settings) LatestTitle(ctx context.Context) (string, bool, error) {
	return s.store.Get(ctx, KeyLatestTitle)
}

func (s *Settings) SetLatestTitle(ctx context.Context, title string) error {
	return s.store.Set(ctx, KeyLatestTitle, title)
}
