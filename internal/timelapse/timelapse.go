// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package timelapse re-encodes a finished recording into a sped-up WebM.
package timelapse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/rs/zerolog"
)

// Mode selects how the source is re-timed.
type Mode string

const (
	// ModeResample rewrites timestamps and drops frames; it runs as fast
	// as the encoder allows.
	ModeResample Mode = "resample"
	// ModeRealtime reads the source at native speed before re-timing,
	// like playing it back and recording the playback.
	ModeRealtime Mode = "realtime"
)

const (
	DefaultRate = 1.0
	DefaultFPS  = 30
)

var (
	ErrInvalidRate = errors.New("timelapse rate must be >= 1")
	ErrInvalidMode = errors.New("unknown timelapse mode")
	ErrEmptyInput  = errors.New("recording has no media")
)

// Config configures the compositor.
type Config struct {
	Bin        string
	ProbeBin   string // empty disables duration probing
	Mode       Mode
	Rate       float64
	FPS        int
	VideoCodec string
	Bitrate    string
	TempDir    string
}

// Validate checks the re-timing parameters.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeResample, ModeRealtime, "":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Rate != 0 && c.Rate < 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, c.Rate)
	}
	if c.FPS < 0 {
		return fmt.Errorf("timelapse fps must be positive: %d", c.FPS)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Bin == "" {
		c.Bin = "ffmpeg"
	}
	if c.Mode == "" {
		c.Mode = ModeResample
	}
	if c.Rate == 0 {
		c.Rate = DefaultRate
	}
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if c.VideoCodec == "" {
		c.VideoCodec = "libvpx"
	}
	if c.Bitrate == "" {
		c.Bitrate = "2M"
	}
	return c
}

// Result describes a written timelapse.
type Result struct {
	Path  string
	Bytes int64
	// Duration is the probed output length, zero when unknown.
	Duration time.Duration
}

// Compositor turns captured media into a timelapse file.
type Compositor struct {
	mu     sync.RWMutex
	cfg    Config
	runner Runner
	logger zerolog.Logger
}

func New(cfg Config, runner Runner) (*Compositor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		runner = NewExecRunner(0)
	}
	return &Compositor{cfg: cfg.withDefaults(), runner: runner, logger: xglog.WithComponent("timelapse")}, nil
}

func (c *Compositor) config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Rate is the effective speed-up factor.
func (c *Compositor) Rate() float64 { return c.config().Rate }

// Retime replaces the re-timing parameters. Encodes already running keep
// the values they started with.
func (c *Compositor) Retime(mode Mode, rate float64, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cfg
	next.Mode, next.Rate, next.FPS = mode, rate, fps
	if err := next.Validate(); err != nil {
		return err
	}
	c.cfg = next.withDefaults()
	return nil
}

// BuildArgs returns the ffmpeg arguments that re-encode input into output.
func (c *Compositor) BuildArgs(input, output string) []string {
	return buildArgs(c.config(), input, output)
}

func buildArgs(cfg Config, input, output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}
	if cfg.Mode == ModeRealtime {
		args = append(args, "-re")
	}
	filter := fmt.Sprintf("setpts=PTS/%s,fps=%d", strconv.FormatFloat(cfg.Rate, 'f', -1, 64), cfg.FPS)
	return append(args,
		"-i", input,
		"-an",
		"-vf", filter,
		"-c:v", cfg.VideoCodec,
		"-b:v", cfg.Bitrate,
		"-f", "webm",
		output,
	)
}

// Compose writes chunks to a temporary source file and encodes the
// timelapse into output. output must already be writable; it is
// overwritten.
func (c *Compositor) Compose(ctx context.Context, chunks [][]byte, output string) (Result, error) {
	logger := xglog.WithContext(ctx, c.logger)
	cfg := c.config()
	src, err := writeSource(cfg.TempDir, chunks)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = os.Remove(src) }()

	args := buildArgs(cfg, src, output)
	started := time.Now()
	out, err := c.runner.Run(ctx, cfg.Bin, args)
	if err != nil {
		return Result{}, fmt.Errorf("encode timelapse: %w: %s", err, strings.TrimSpace(string(out)))
	}

	res := Result{Path: output}
	if st, err := os.Stat(output); err == nil {
		res.Bytes = st.Size()
	}
	if cfg.ProbeBin != "" {
		d, err := c.probe(ctx, cfg.ProbeBin, output)
		if err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "timelapse.probe_failed").Msg("could not probe timelapse duration")
		}
		res.Duration = d
	}

	logger.Info().
		Str(xglog.FieldEvent, "timelapse.encoded").
		Str("mode", string(cfg.Mode)).
		Float64(xglog.FieldRate, cfg.Rate).
		Int64("bytes", res.Bytes).
		Dur("took", time.Since(started)).
		Msg("timelapse encoded")
	return res, nil
}

func writeSource(dir string, chunks [][]byte) (string, error) {
	size := 0
	for _, ch := range chunks {
		size += len(ch)
	}
	if size == 0 {
		return "", ErrEmptyInput
	}
	f, err := os.CreateTemp(dir, "examcap-source-*.webm")
	if err != nil {
		return "", fmt.Errorf("create source file: %w", err)
	}
	for _, ch := range chunks {
		if _, err := f.Write(ch); err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("write source file: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close source file: %w", err)
	}
	return f.Name(), nil
}

func (c *Compositor) probe(ctx context.Context, bin, path string) (time.Duration, error) {
	out, err := c.runner.Run(ctx, bin, []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	})
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseProbeDuration(string(out))
}

// ParseProbeDuration parses ffprobe's seconds output.
func ParseProbeDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(secs * float64(time.Second)).Round(time.Millisecond), nil
}
