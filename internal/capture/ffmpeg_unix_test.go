// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

//go:build unix

package capture

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestAcquireStreamsUntilStopped(t *testing.T) {
	bin := fakeFFmpeg(t, `printf 'webm-bytes'; exec sleep 30`)
	a := NewFFmpegAcquirer(FFmpegConfig{Bin: bin, StartTimeout: 5 * time.Second, StopGrace: time.Second})

	stream, err := a.Acquire(context.Background(), Options{FPS: 30})
	require.NoError(t, err)

	var got bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range stream.Chunks() {
			got.Write(c)
		}
	}()

	require.NoError(t, stream.Stop(context.Background()))
	require.NoError(t, stream.Stop(context.Background()))
	<-done
	<-stream.Ended()
	assert.Equal(t, "webm-bytes", got.String())
}

func TestAcquireFailsWhenSourceExitsEarly(t *testing.T) {
	bin := fakeFFmpeg(t, `echo "cannot open display" >&2; exit 1`)
	a := NewFFmpegAcquirer(FFmpegConfig{Bin: bin, StartTimeout: 5 * time.Second})

	_, err := a.Acquire(context.Background(), Options{FPS: 30})
	require.ErrorIs(t, err, ErrPermission)
	assert.Contains(t, err.Error(), "cannot open display")
}

func TestAcquireTimesOutWithoutData(t *testing.T) {
	bin := fakeFFmpeg(t, `exec sleep 30`)
	a := NewFFmpegAcquirer(FFmpegConfig{Bin: bin, StartTimeout: 100 * time.Millisecond, StopGrace: time.Second})

	_, err := a.Acquire(context.Background(), Options{FPS: 30})
	require.ErrorIs(t, err, ErrPermission)
}
