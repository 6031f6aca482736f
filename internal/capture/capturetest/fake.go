// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package capturetest provides in-memory capture sources for tests.
package capturetest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/examcap/internal/capture"
)

// Stream is a capture.Stream fed by the test.
type Stream struct {
	chunks chan []byte
	ended  chan struct{}
	once   sync.Once
	stops  atomic.Int32
}

func NewStream() *Stream {
	return &Stream{chunks: make(chan []byte, 64), ended: make(chan struct{})}
}

// Emit queues a chunk. It must not be called after End or Stop.
func (s *Stream) Emit(b []byte) { s.chunks <- b }

// End simulates the user stopping the share from outside the window.
func (s *Stream) End() {
	s.once.Do(func() {
		close(s.chunks)
		close(s.ended)
	})
}

func (s *Stream) Chunks() <-chan []byte  { return s.chunks }
func (s *Stream) Ended() <-chan struct{} { return s.ended }

func (s *Stream) Stop(context.Context) error {
	s.stops.Add(1)
	s.End()
	return nil
}

// Stops reports how often Stop was called.
func (s *Stream) Stops() int { return int(s.stops.Load()) }

// Acquirer hands out a prepared stream or a fixed error.
type Acquirer struct {
	Err error

	mu      sync.Mutex
	streams []*Stream
	opts    []capture.Options
	// Acquired is signalled after each successful Acquire.
	Acquired chan *Stream
}

func NewAcquirer() *Acquirer {
	return &Acquirer{Acquired: make(chan *Stream, 8)}
}

func (a *Acquirer) Acquire(ctx context.Context, opts capture.Options) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.opts = append(a.opts, opts)
	a.mu.Unlock()
	if a.Err != nil {
		return nil, a.Err
	}
	s := NewStream()
	a.mu.Lock()
	a.streams = append(a.streams, s)
	a.mu.Unlock()
	select {
	case a.Acquired <- s:
	default:
	}
	return s, nil
}

// Options returns the options of every Acquire call.
func (a *Acquirer) Options() []capture.Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]capture.Options(nil), a.opts...)
}
