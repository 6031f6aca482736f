// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/metrics"
	"github.com/ManuGH/examcap/internal/procgroup"
	"github.com/rs/zerolog"
)

const (
	ConsentGrant = "grant"
	ConsentDeny  = "deny"
)

// FFmpegConfig configures the ffmpeg screen source.
type FFmpegConfig struct {
	Bin          string
	InputFormat  string // x11grab, gdigrab, avfoundation, lavfi
	Display      string // input passed to -i
	AudioFormat  string // e.g. pulse; empty disables audio
	AudioInput   string
	VideoCodec   string
	Bitrate      string
	Consent      string
	StartTimeout time.Duration
	StopGrace    time.Duration
	ReadSize     int
}

// FFmpegAcquirer captures the screen with an ffmpeg child process writing
// WebM to its stdout.
type FFmpegAcquirer struct {
	cfg    FFmpegConfig
	logger zerolog.Logger
}

func NewFFmpegAcquirer(cfg FFmpegConfig) *FFmpegAcquirer {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "x11grab"
	}
	if cfg.Display == "" {
		cfg.Display = ":0.0"
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = "libvpx"
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "2M"
	}
	if cfg.Consent == "" {
		cfg.Consent = ConsentGrant
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 10 * time.Second
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = 32 * 1024
	}
	return &FFmpegAcquirer{cfg: cfg, logger: xglog.WithComponent("capture")}
}

// BuildArgs returns the ffmpeg argument list for opts.
func (a *FFmpegAcquirer) BuildArgs(opts Options) []string {
	fps := strconv.Itoa(opts.FPS)
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error"}

	args = append(args, "-f", a.cfg.InputFormat)
	if a.cfg.InputFormat != "lavfi" {
		args = append(args, "-framerate", fps)
	}
	args = append(args, "-i", a.cfg.Display)

	audio := opts.Audio && a.cfg.AudioFormat != ""
	if audio {
		input := a.cfg.AudioInput
		if input == "" {
			input = "default"
		}
		args = append(args, "-f", a.cfg.AudioFormat, "-i", input)
	}

	args = append(args,
		"-map", "0:v:0",
		"-c:v", a.cfg.VideoCodec,
		"-b:v", a.cfg.Bitrate,
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-r", fps,
	)
	if audio {
		args = append(args, "-map", "1:a:0", "-c:a", "libopus")
	} else {
		args = append(args, "-an")
	}
	return append(args, "-f", "webm", "pipe:1")
}

// Acquire checks the consent policy, starts ffmpeg and waits for the first
// media bytes.
func (a *FFmpegAcquirer) Acquire(ctx context.Context, opts Options) (Stream, error) {
	logger := xglog.WithContext(ctx, a.logger)
	if a.cfg.Consent != ConsentGrant {
		metrics.IncCaptureAcquire("denied")
		return nil, fmt.Errorf("%w: consent policy is %q", ErrPermission, a.cfg.Consent)
	}

	args := a.BuildArgs(opts)
	cmd := exec.Command(a.cfg.Bin, args...)
	procgroup.Set(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		metrics.IncCaptureAcquire("error")
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		metrics.IncCaptureAcquire("error")
		return nil, fmt.Errorf("%w: start %s: %v", ErrPermission, a.cfg.Bin, err)
	}
	logger.Info().
		Str(xglog.FieldEvent, "capture.process_started").
		Int("pid", cmd.Process.Pid).
		Int(xglog.FieldFPS, opts.FPS).
		Strs("args", args).
		Msg("ffmpeg capture started")

	s := &ffmpegStream{
		cmd:     cmd,
		grace:   a.cfg.StopGrace,
		chunks:  make(chan []byte, 16),
		ended:   make(chan struct{}),
		started: make(chan struct{}),
		waitCh:  make(chan error, 1),
		stderr:  stderr,
		logger:  logger,
	}
	go s.pump(stdout, a.cfg.ReadSize)

	timer := time.NewTimer(a.cfg.StartTimeout)
	defer timer.Stop()
	select {
	case <-s.started:
		metrics.IncCaptureAcquire("ok")
		return s, nil
	case <-s.ended:
		s.discard()
		metrics.IncCaptureAcquire("unavailable")
		return nil, fmt.Errorf("%w: capture source ended before producing data: %s", ErrPermission, stderr.String())
	case <-timer.C:
		s.discard()
		metrics.IncCaptureAcquire("timeout")
		return nil, fmt.Errorf("%w: no capture data within %s", ErrPermission, a.cfg.StartTimeout)
	case <-ctx.Done():
		s.discard()
		metrics.IncCaptureAcquire("cancelled")
		return nil, ctx.Err()
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	grace  time.Duration
	stderr *tailBuffer
	logger zerolog.Logger

	chunks  chan []byte
	ended   chan struct{}
	started chan struct{}
	waitCh  chan error

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error
}

func (s *ffmpegStream) Chunks() <-chan []byte  { return s.chunks }
func (s *ffmpegStream) Ended() <-chan struct{} { return s.ended }

// pump forwards stdout until EOF. Wait is only called after all reads
// have completed.
func (s *ffmpegStream) pump(stdout io.Reader, size int) {
	defer close(s.chunks)
	buf := make([]byte, size)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			s.startOnce.Do(func() { close(s.started) })
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			break
		}
	}
	s.waitCh <- s.cmd.Wait()
	close(s.ended)
}

// Stop sends SIGTERM so ffmpeg can write the WebM trailer, escalating to
// SIGKILL after the grace period.
func (s *ffmpegStream) Stop(context.Context) error {
	s.stopOnce.Do(func() {
		err := procgroup.Terminate(s.cmd, s.waitCh, s.grace)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// ffmpeg exits non-zero when interrupted; the output is complete.
			err = nil
		}
		s.stopErr = err
		s.logger.Info().
			Str(xglog.FieldEvent, "capture.process_stopped").
			Err(err).
			Msg("ffmpeg capture stopped")
	})
	return s.stopErr
}

// discard stops a stream nobody will read from.
func (s *ffmpegStream) discard() {
	go func() {
		for range s.chunks {
		}
	}()
	_ = s.Stop(context.Background())
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
