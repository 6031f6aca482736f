// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package eventlog holds the append-only record of observed text changes
// during one capture session.
package eventlog

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNegativeElapsed = errors.New("elapsed time is negative")
	ErrOutOfOrder      = errors.New("entry predates last entry")
	ErrSealed          = errors.New("event log is sealed")
)

// Entry is a single observation: the text seen at ElapsedMillis after the
// session started.
type Entry struct {
	ElapsedMillis int64  `json:"elapsedMillis"`
	Text          string `json:"text"`
}

// Log is time-ordered and append-only. It is safe for concurrent use; the
// title monitor appends while the capture session may read a snapshot.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	sealed  bool
}

func New() *Log {
	return &Log{}
}

// Append adds an entry. ElapsedMillis must be non-negative and not smaller
// than the last recorded entry.
func (l *Log) Append(e Entry) error {
	if e.ElapsedMillis < 0 {
		return fmt.Errorf("append %q at %dms: %w", e.Text, e.ElapsedMillis, ErrNegativeElapsed)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return ErrSealed
	}
	if n := len(l.entries); n > 0 && e.ElapsedMillis < l.entries[n-1].ElapsedMillis {
		return fmt.Errorf("append %q at %dms after %dms: %w", e.Text, e.ElapsedMillis, l.entries[n-1].ElapsedMillis, ErrOutOfOrder)
	}
	l.entries = append(l.entries, e)
	return nil
}

// Len returns the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Last returns the most recent entry.
func (l *Log) Last() (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of the recorded entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Seal freezes the log and returns its final contents. Later appends fail
// with ErrSealed.
func (l *Log) Seal() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sealed = true
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// IsSorted reports whether entries are in non-decreasing elapsed order.
func IsSorted(entries []Entry) bool {
	for i := 1; i < len(entries); i++ {
		if entries[i].ElapsedMillis < entries[i-1].ElapsedMillis {
			return false
		}
	}
	return true
}
