// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgsScreenOnly(t *testing.T) {
	a := NewFFmpegAcquirer(FFmpegConfig{})
	args := a.BuildArgs(Options{FPS: 15, Audio: true})

	assert.Equal(t, []string{
		"-hide_banner", "-nostdin", "-loglevel", "error",
		"-f", "x11grab", "-framerate", "15", "-i", ":0.0",
		"-map", "0:v:0", "-c:v", "libvpx", "-b:v", "2M",
		"-deadline", "realtime", "-cpu-used", "8", "-r", "15",
		"-an", "-f", "webm", "pipe:1",
	}, args, "audio needs an audio format")
}

func TestBuildArgsWithAudio(t *testing.T) {
	a := NewFFmpegAcquirer(FFmpegConfig{AudioFormat: "pulse"})
	args := a.BuildArgs(Options{FPS: 30, Audio: true})

	assert.Contains(t, args, "pulse")
	assert.Contains(t, args, "libopus")
	assert.NotContains(t, args, "-an")
}

func TestBuildArgsLavfiHasNoFramerate(t *testing.T) {
	a := NewFFmpegAcquirer(FFmpegConfig{InputFormat: "lavfi", Display: "testsrc=size=320x240:rate=10"})
	args := a.BuildArgs(Options{FPS: 10})
	assert.NotContains(t, args, "-framerate")
	assert.Contains(t, args, "testsrc=size=320x240:rate=10")
}

func TestAcquireDeniedByPolicy(t *testing.T) {
	a := NewFFmpegAcquirer(FFmpegConfig{Consent: ConsentDeny})
	_, err := a.Acquire(context.Background(), Options{FPS: 30})
	require.ErrorIs(t, err, ErrPermission)
}

func TestAcquireMissingBinary(t *testing.T) {
	a := NewFFmpegAcquirer(FFmpegConfig{Bin: filepath.Join(t.TempDir(), "no-ffmpeg")})
	_, err := a.Acquire(context.Background(), Options{FPS: 30})
	require.ErrorIs(t, err, ErrPermission)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tb := &tailBuffer{max: 5}
	_, _ = tb.Write([]byte("hello "))
	_, _ = tb.Write([]byte("world"))
	assert.Equal(t, "world", tb.String())
}
