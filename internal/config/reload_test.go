// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dataDir: "+dir+"\ncapture:\n  defaultFPS: 10\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)

	h := NewHolder(initial, loader)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\ncapture:\n  defaultFPS: 24\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, 24, h.Get().Capture.DefaultFPS)
	select {
	case got := <-updates:
		assert.Equal(t, 24, got.Capture.DefaultFPS)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolderReloadKeepsOldConfigOnError(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dataDir: "+dir+"\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	require.NoError(t, os.WriteFile(path, []byte("capture:\n  defaultFPS: 500\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, initial.Capture.DefaultFPS, h.Get().Capture.DefaultFPS)
}

func TestHolderWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "dataDir: "+dir+"\n")
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.StartWatcher(ctx))

	require.NoError(t, os.WriteFile(path, []byte("dataDir: "+dir+"\nlogLevel: debug\n"), 0o600))
	assert.Eventually(t, func() bool {
		return h.Get().LogLevel == "debug"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestHolderWatcherDisabledWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "test"))
	require.NoError(t, h.StartWatcher(context.Background()))
}
