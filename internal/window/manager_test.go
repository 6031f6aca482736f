// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package window

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitClosed(t *testing.T, m *Manager) string {
	t.Helper()
	select {
	case h := <-m.Closed():
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("window did not close")
		return ""
	}
}

func TestCloseCancelsRunnerAndReportsOnce(t *testing.T) {
	m := NewManager(func(ctx context.Context, w *Window) error {
		w.SetStatus("Recording...")
		<-ctx.Done()
		w.SetStatus("Saved.")
		return ctx.Err()
	})

	h, err := m.Open(context.Background())
	require.NoError(t, err)
	m.Close(h)
	m.Close(h)

	assert.Equal(t, h, waitClosed(t, m))
	select {
	case extra := <-m.Closed():
		t.Fatalf("unexpected second close for %s", extra)
	case <-time.After(50 * time.Millisecond):
	}

	info, ok := m.Status(h)
	require.True(t, ok)
	assert.True(t, info.Closed)
	assert.True(t, info.Closing)
	assert.Equal(t, "Saved.", info.Status)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestRunnerReturningOnItsOwnClosesWindow(t *testing.T) {
	m := NewManager(func(context.Context, *Window) error {
		return errors.New("consent denied")
	})
	h, err := m.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h, waitClosed(t, m))

	require.ErrorIs(t, m.Focus(h), ErrUnknownWindow)
	m.Close(h)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestFocusCountsRequests(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(func(ctx context.Context, w *Window) error {
		<-release
		return nil
	})
	h, err := m.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.Focus(h))
	require.NoError(t, m.Focus(h))

	info, ok := m.Status(h)
	require.True(t, ok)
	assert.Equal(t, 2, info.Focused)
	assert.False(t, info.Closed)

	close(release)
	waitClosed(t, m)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestOpenDoesNotInheritCancellation(t *testing.T) {
	m := NewManager(func(ctx context.Context, w *Window) error {
		<-ctx.Done()
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	h, err := m.Open(ctx)
	require.NoError(t, err)
	cancel()

	_, ok := m.Status(h)
	assert.True(t, ok)
	m.Close(h)
	waitClosed(t, m)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestShutdownStopsEverything(t *testing.T) {
	m := NewManager(func(ctx context.Context, w *Window) error {
		<-ctx.Done()
		return nil
	})
	for range 3 {
		_, err := m.Open(context.Background())
		require.NoError(t, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	_, err := m.Open(context.Background())
	require.ErrorIs(t, err, ErrShutdown)
}
