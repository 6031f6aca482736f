// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capture acquires a screen capture stream, buffers it while the
// session runs and hands a finalized artifact to the derivation stages.
package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

var (
	// ErrPermission covers consent denial, cancellation and an unavailable
	// display.
	ErrPermission        = errors.New("screen capture not permitted")
	ErrAlreadyFinalizing = errors.New("capture session already finalizing")
	ErrNotStarted        = errors.New("capture session not started")
	ErrConsumed          = errors.New("capture artifact already consumed")
)

// Options are the per-session acquisition parameters.
type Options struct {
	FPS   int
	Audio bool
}

// Stream is a live capture source.
type Stream interface {
	// Chunks yields encoded media in order and is closed once the source
	// has flushed its last bytes.
	Chunks() <-chan []byte
	// Ended is closed when the source stops producing, whether it was
	// stopped or ended on its own.
	Ended() <-chan struct{}
	// Stop releases the source. Safe to call more than once.
	Stop(ctx context.Context) error
}

// Acquirer obtains consent and opens a stream.
type Acquirer interface {
	Acquire(ctx context.Context, opts Options) (Stream, error)
}

// Artifact is the finalized recording. It never changes after the session
// stopped and its media can be taken exactly once.
type Artifact struct {
	StartTimestamp time.Time
	TotalDuration  time.Duration

	chunks   [][]byte
	size     int
	consumed atomic.Bool
}

// NewArtifact builds an artifact from already captured chunks.
func NewArtifact(chunks [][]byte, start time.Time, total time.Duration) *Artifact {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	if total < 0 {
		total = 0
	}
	return &Artifact{StartTimestamp: start, TotalDuration: total, chunks: chunks, size: size}
}

// TotalMillis is the recording length in milliseconds.
func (a *Artifact) TotalMillis() int64 { return a.TotalDuration.Milliseconds() }

// Size is the number of media bytes held.
func (a *Artifact) Size() int { return a.size }

// Consume hands out the media chunks. Subsequent calls fail with
// ErrConsumed.
func (a *Artifact) Consume() ([][]byte, error) {
	if !a.consumed.CompareAndSwap(false, true) {
		return nil, ErrConsumed
	}
	chunks := a.chunks
	a.chunks = nil
	return chunks, nil
}
