// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package eventlog

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendKeepsOrder(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Entry{ElapsedMillis: 0, Text: "Q1"}))
	require.NoError(t, l.Append(Entry{ElapsedMillis: 0, Text: "Q1b"}))
	require.NoError(t, l.Append(Entry{ElapsedMillis: 12000, Text: "Q2"}))

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, "Q2", last.Text)
	assert.Equal(t, 3, l.Len())
	assert.True(t, IsSorted(l.Entries()))
}

func TestAppendRejectsOutOfOrderAndNegative(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Entry{ElapsedMillis: 500, Text: "A"}))

	err := l.Append(Entry{ElapsedMillis: 400, Text: "B"})
	require.ErrorIs(t, err, ErrOutOfOrder)

	err = l.Append(Entry{ElapsedMillis: -1, Text: "C"})
	require.ErrorIs(t, err, ErrNegativeElapsed)

	assert.Equal(t, 1, l.Len())
}

func TestSealFreezesLog(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Entry{ElapsedMillis: 0, Text: "A"}))

	final := l.Seal()
	require.Len(t, final, 1)
	require.ErrorIs(t, l.Append(Entry{ElapsedMillis: 10, Text: "B"}), ErrSealed)

	// Snapshot copies must not alias internal storage.
	final[0].Text = "mutated"
	assert.Equal(t, "A", l.Entries()[0].Text)
}

func TestConcurrentAppendStaysSorted(t *testing.T) {
	l := New()
	var mu sync.Mutex
	next := int64(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				mu.Lock()
				next += 10
				_ = l.Append(Entry{ElapsedMillis: next, Text: "x"})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 400, l.Len())
	assert.True(t, IsSorted(l.Entries()))
}

func TestIsSorted(t *testing.T) {
	assert.True(t, IsSorted(nil))
	assert.False(t, IsSorted([]Entry{{ElapsedMillis: 5}, {ElapsedMillis: 1}}))
}
