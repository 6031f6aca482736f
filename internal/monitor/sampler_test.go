// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/examcap/internal/eventlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedTitles struct {
	mu     sync.Mutex
	values []string
	pos    int
}

func (s *scriptedTitles) LatestTitle(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return "", false, nil
	}
	v := s.values[s.pos]
	if s.pos < len(s.values)-1 {
		s.pos++
	}
	return v, true, nil
}

type steppedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *steppedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTitleMonitorRecordsOnlyTransitions(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := &steppedClock{now: start}
	src := &scriptedTitles{values: []string{"A", "A", "B", "B", "B", "C"}}
	events := eventlog.New()
	m := NewTitleMonitor(src, events, start, 500*time.Millisecond, clock.Now)

	for i := 0; i < 6; i++ {
		_, err := m.Poll(context.Background())
		require.NoError(t, err)
		clock.Advance(500 * time.Millisecond)
	}

	require.Equal(t, []eventlog.Entry{
		{ElapsedMillis: 0, Text: "A"},
		{ElapsedMillis: 1000, Text: "B"},
		{ElapsedMillis: 2500, Text: "C"},
	}, events.Entries())
}

func TestTitleMonitorSeedsInitialTitleAtZero(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	clock := &steppedClock{now: start.Add(500 * time.Millisecond)}
	src := &scriptedTitles{values: []string{"Q1", "Q1", "Q2"}}
	events := eventlog.New()
	m := NewTitleMonitor(src, events, start, 0, clock.Now)

	require.NoError(t, m.Seed(context.Background()))
	for i := 0; i < 2; i++ {
		_, err := m.Poll(context.Background())
		require.NoError(t, err)
		clock.Advance(500 * time.Millisecond)
	}

	require.Equal(t, []eventlog.Entry{
		{ElapsedMillis: 0, Text: "Q1"},
		{ElapsedMillis: 1000, Text: "Q2"},
	}, events.Entries())
}

func TestTitleMonitorSeedWithoutTitleLeavesLogEmpty(t *testing.T) {
	events := eventlog.New()
	m := NewTitleMonitor(&scriptedTitles{}, events, time.Now(), 0, nil)
	require.NoError(t, m.Seed(context.Background()))
	require.Zero(t, events.Len())
}

func TestSamplerIgnoresRejectedValues(t *testing.T) {
	var got []string
	s := NewSampler(SamplerConfig[string]{
		Equal:  func(a, b string) bool { return a == b },
		Accept: func(v string) bool { return v != "" },
		Record: func(_ time.Duration, v string) error {
			got = append(got, v)
			return nil
		},
	})
	now := time.Now()
	for _, v := range []string{"", "x", "", "x", "y"} {
		_, err := s.Observe(now, v)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"x", "y"}, got)
}

func TestSamplerCustomEquality(t *testing.T) {
	var got []string
	s := NewSampler(SamplerConfig[string]{
		Equal: strings.EqualFold,
		Record: func(_ time.Duration, v string) error {
			got = append(got, v)
			return nil
		},
	})
	for _, v := range []string{"Intro", "INTRO", "intro", "Outro"} {
		_, err := s.Observe(time.Now(), v)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"Intro", "Outro"}, got)
}

func TestSamplerRecordFailureKeepsLastValue(t *testing.T) {
	fail := true
	s := NewSampler(SamplerConfig[int]{
		Equal: func(a, b int) bool { return a == b },
		Record: func(time.Duration, int) error {
			if fail {
				return errors.New("disk full")
			}
			return nil
		},
	})
	_, err := s.Observe(time.Now(), 1)
	require.Error(t, err)
	_, ok := s.Last()
	require.False(t, ok)

	fail = false
	recorded, err := s.Observe(time.Now(), 1)
	require.NoError(t, err)
	require.True(t, recorded)
}

func TestSamplerPollWithoutSource(t *testing.T) {
	s := NewSampler(SamplerConfig[int]{Equal: func(a, b int) bool { return a == b }})
	_, err := s.Poll(context.Background())
	require.ErrorIs(t, err, ErrNoSource)
}

func TestTitleMonitorRunStopsOnCancel(t *testing.T) {
	src := &scriptedTitles{values: []string{"A", "B"}}
	events := eventlog.New()
	m := NewTitleMonitor(src, events, time.Now(), 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return events.Len() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
