// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/ManuGH/examcap/internal/api"
	"github.com/ManuGH/examcap/internal/config"
	"github.com/ManuGH/examcap/internal/coordinator"
	"github.com/ManuGH/examcap/internal/store"
	"github.com/ManuGH/examcap/internal/timelapse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Store.Backend = "memory"
	cfg.Output.Dir = t.TempDir()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Capture.FFmpegBin = "/nonexistent/ffmpeg"
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestNewManagerRequiresHandler(t *testing.T) {
	_, err := NewManager(ServerConfig{}, nil)
	require.ErrorIs(t, err, ErrMissingHandler)
}

func TestShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(ServerConfig{ListenAddr: "127.0.0.1:0"}, http.NotFoundHandler())
	require.NoError(t, err)
	require.ErrorIs(t, m.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestNewAppRequiresRuntime(t *testing.T) {
	_, err := NewApp(nil, nil)
	require.ErrorIs(t, err, ErrMissingRuntime)
}

func TestBootstrapRejectsBadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "etcd"
	rt, err := Bootstrap(context.Background(), cfg)
	require.ErrorIs(t, err, store.ErrUnknownBackend)
	assert.Nil(t, rt)
}

func TestBootstrapClosesStoreOnLaterFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "badger"
	cfg.Store.Path = filepath.Join(t.TempDir(), "badger")
	cfg.Timelapse.Rate = 0.5
	rt, err := Bootstrap(context.Background(), cfg)
	require.ErrorIs(t, err, timelapse.ErrInvalidRate)
	assert.Nil(t, rt)

	// badger holds a directory lock until closed
	again, err := store.Open(store.Options{Backend: "badger", Path: cfg.Store.Path})
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestAppServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	rt, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	addr, err := rt.Manager.Listen()
	require.NoError(t, err)

	var hookRan bool
	rt.Manager.RegisterShutdownHook("test-hook", func(context.Context) error {
		hookRan = true
		return nil
	})

	app, err := NewApp(rt, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	base := fmt.Sprintf("http://%s", addr)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Get(base + "/api/v1/session")
	require.NoError(t, err)
	var session api.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	_ = resp.Body.Close()
	assert.Equal(t, coordinator.PhaseIdle, session.Session.Phase)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, hookRan)
}

func writeDaemonConfig(t *testing.T, path, dir string, rate float64, fps int) {
	t.Helper()
	body := fmt.Sprintf(`dataDir: %s
logLevel: info
server:
  listenAddr: 127.0.0.1:0
store:
  backend: memory
capture:
  ffmpegBin: /nonexistent/ffmpeg
  defaultFPS: %d
timelapse:
  rate: %v
`, dir, fps, rate)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestReloadRetimesNextRecording(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeDaemonConfig(t, path, dir, 2, 15)

	loader := config.NewLoader(path, "test")
	cfg, err := loader.Load()
	require.NoError(t, err)
	rt, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	_, err = rt.Manager.Listen()
	require.NoError(t, err)

	app, err := NewApp(rt, config.NewHolder(cfg, loader))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Contains(t, rt.Compositor.BuildArgs("in", "out"), "setpts=PTS/2,fps=30")

	writeDaemonConfig(t, path, dir, 6, 48)
	require.Eventually(t, func() bool {
		_ = app.cfgHolder.Reload(ctx)
		return slices.Contains(rt.Compositor.BuildArgs("in", "out"), "setpts=PTS/6,fps=30")
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, 48, rt.Settings.DefaultFPS())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
