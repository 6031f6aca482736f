// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/examcap/internal/metrics"
)

// Session buffers a stream from Start until Stop.
type Session struct {
	now func() time.Time

	mu      sync.Mutex
	stream  Stream
	start   time.Time
	chunks  [][]byte
	drained chan struct{}

	finalizing atomic.Bool
}

func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{now: now}
}

// Start begins collecting chunks from stream and fixes the start instant.
func (s *Session) Start(stream Stream) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = stream
	s.start = s.now()
	s.drained = make(chan struct{})
	go s.collect(stream.Chunks(), s.drained)
	return s.start
}

func (s *Session) collect(in <-chan []byte, drained chan<- struct{}) {
	defer close(drained)
	for chunk := range in {
		if len(chunk) == 0 {
			continue
		}
		metrics.AddCaptureBytes(len(chunk))
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.mu.Unlock()
	}
}

// StartedAt is the instant Start was called.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// Stop finalizes the session once: the stream is stopped, the remaining
// chunks are flushed and the artifact is returned. Later calls fail with
// ErrAlreadyFinalizing.
func (s *Session) Stop(ctx context.Context) (*Artifact, error) {
	s.mu.Lock()
	stream, drained, start := s.stream, s.drained, s.start
	s.mu.Unlock()
	if stream == nil {
		return nil, ErrNotStarted
	}
	if !s.finalizing.CompareAndSwap(false, true) {
		return nil, ErrAlreadyFinalizing
	}

	end := s.now()
	stopErr := stream.Stop(ctx)
	select {
	case <-drained:
	case <-ctx.Done():
		return nil, fmt.Errorf("flush capture: %w", ctx.Err())
	}

	s.mu.Lock()
	chunks := s.chunks
	s.chunks = nil
	s.mu.Unlock()

	art := NewArtifact(chunks, start, end.Sub(start))
	if stopErr != nil {
		return art, fmt.Errorf("stop stream: %w", stopErr)
	}
	return art, nil
}
