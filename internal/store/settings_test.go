// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFPS(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := NewSettings(mem, 20)

	fps, err := s.FPS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, fps, "default when unset")

	require.NoError(t, s.SetFPS(ctx, 60))
	fps, err = s.FPS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 60, fps)

	require.ErrorIs(t, s.SetFPS(ctx, 0), ErrInvalidFPS)
	require.ErrorIs(t, s.SetFPS(ctx, 121), ErrInvalidFPS)

	require.NoError(t, mem.Set(ctx, KeyFPS, "fast"))
	fps, err = s.FPS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, fps, "garbage falls back to default")
}

func TestSettingsInvalidDefault(t *testing.T) {
	s := NewSettings(NewMemoryStore(), 500)
	fps, err := s.FPS(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultFPS, fps)
}

func TestSettingsDefaultFPSCanChange(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemoryStore(), 20)

	s.SetDefaultFPS(45)
	fps, err := s.FPS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, fps)

	s.SetDefaultFPS(0)
	assert.Equal(t, DefaultFPS, s.DefaultFPS())
}

func TestSettingsStoreFailureReturnsDefault(t *testing.T) {
	mem := NewMemoryStore()
	s := NewSettings(mem, 25)
	require.NoError(t, mem.Close())

	fps, err := s.FPS(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 25, fps)
}

func TestSettingsLatestTitle(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(NewMemoryStore(), DefaultFPS)

	_, ok, err := s.LatestTitle(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetLatestTitle(ctx, "Section B"))
	title, ok, err := s.LatestTitle(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Section B", title)
}
