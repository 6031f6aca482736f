// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package subtitle turns an event log into a SubRip caption track.
package subtitle

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/examcap/internal/eventlog"
	unorm "golang.org/x/text/unicode/norm"
)

var (
	ErrUnsorted         = errors.New("event log is not sorted by elapsed time")
	ErrNegativeDuration = errors.New("total duration is negative")
)

const dayMillis = 24 * 60 * 60 * 1000

// Cue is one timed caption segment.
type Cue struct {
	Index       int
	StartMillis int64
	EndMillis   int64
	Text        string
}

// BuildTrack derives one cue per entry. Each cue ends where the next one
// starts; the last cue ends at totalMillis. An empty log yields no cues.
//
// A total shorter than the last entry is raised to the last entry's time so
// the track never runs backwards.
func BuildTrack(entries []eventlog.Entry, totalMillis int64) ([]Cue, error) {
	if totalMillis < 0 {
		return nil, fmt.Errorf("build track: %w", ErrNegativeDuration)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if !eventlog.IsSorted(entries) {
		return nil, fmt.Errorf("build track: %w", ErrUnsorted)
	}
	if last := entries[len(entries)-1].ElapsedMillis; totalMillis < last {
		totalMillis = last
	}

	cues := make([]Cue, 0, len(entries))
	for i, e := range entries {
		end := totalMillis
		if i < len(entries)-1 {
			end = entries[i+1].ElapsedMillis
		}
		cues = append(cues, Cue{
			Index:       i + 1,
			StartMillis: e.ElapsedMillis,
			EndMillis:   end,
			Text:        unorm.NFC.String(e.Text),
		})
	}
	return cues, nil
}

// FormatTimestamp renders milliseconds as HH:MM:SS,mmm. Hours wrap at 24,
// the same way a wall-clock rendering of an absolute UTC instant does.
func FormatTimestamp(ms int64) string {
	ms %= dayMillis
	if ms < 0 {
		ms += dayMillis
	}
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	milli := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, milli)
}

// Render serializes cues as an SRT document. Cues are separated by a blank
// line and surrounding whitespace is trimmed.
func Render(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", c.Index, FormatTimestamp(c.StartMillis), FormatTimestamp(c.EndMillis), c.Text)
	}
	return strings.TrimSpace(b.String())
}

// Generate builds and renders the caption track for an event log.
func Generate(entries []eventlog.Entry, totalMillis int64) (string, error) {
	cues, err := BuildTrack(entries, totalMillis)
	if err != nil {
		return "", err
	}
	return Render(cues), nil
}

// Write renders the caption track for entries into w.
func Write(w io.Writer, entries []eventlog.Entry, totalMillis int64) (int, error) {
	doc, err := Generate(entries, totalMillis)
	if err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, doc)
	if err != nil {
		return n, fmt.Errorf("write srt: %w", err)
	}
	return n, nil
}
