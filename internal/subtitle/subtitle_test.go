// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package subtitle

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ManuGH/examcap/internal/eventlog"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestGenerateTwoQuestions(t *testing.T) {
	entries := []eventlog.Entry{
		{ElapsedMillis: 0, Text: "Q1"},
		{ElapsedMillis: 12000, Text: "Q2"},
	}

	cues, err := BuildTrack(entries, 20000)
	require.NoError(t, err)
	want := []Cue{
		{Index: 1, StartMillis: 0, EndMillis: 12000, Text: "Q1"},
		{Index: 2, StartMillis: 12000, EndMillis: 20000, Text: "Q2"},
	}
	if diff := cmp.Diff(want, cues); diff != "" {
		t.Fatalf("cues mismatch (-want +got):\n%s", diff)
	}

	doc, err := Generate(entries, 20000)
	require.NoError(t, err)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:12,000\nQ1\n\n2\n00:00:12,000 --> 00:00:20,000\nQ2", doc)
}

func TestGenerateEmptyLogIsEmptyDocument(t *testing.T) {
	doc, err := Generate(nil, 5000)
	require.NoError(t, err)
	require.Empty(t, doc)

	cues, err := BuildTrack([]eventlog.Entry{}, 0)
	require.NoError(t, err)
	require.Empty(t, cues)
}

func TestBuildTrackIsContiguous(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := 1 + rng.Intn(20)
		entries := make([]eventlog.Entry, n)
		var at int64
		for i := range entries {
			if i > 0 {
				at += int64(rng.Intn(5000))
			}
			entries[i] = eventlog.Entry{ElapsedMillis: at, Text: "t"}
		}
		// The first entry is seeded at zero by the monitor.
		entries[0].ElapsedMillis = 0
		total := at + int64(rng.Intn(10000))

		cues, err := BuildTrack(entries, total)
		require.NoError(t, err)
		require.Len(t, cues, n)
		require.Equal(t, int64(0), cues[0].StartMillis)
		require.Equal(t, total, cues[n-1].EndMillis)
		for i := range cues {
			require.Equal(t, i+1, cues[i].Index)
			require.LessOrEqual(t, cues[i].StartMillis, cues[i].EndMillis)
			if i < n-1 {
				require.Equal(t, cues[i].EndMillis, cues[i+1].StartMillis)
			}
		}
	}
}

func TestBuildTrackRejectsUnsortedLog(t *testing.T) {
	_, err := BuildTrack([]eventlog.Entry{{ElapsedMillis: 10}, {ElapsedMillis: 5}}, 20)
	require.ErrorIs(t, err, ErrUnsorted)

	_, err = BuildTrack(nil, -1)
	require.ErrorIs(t, err, ErrNegativeDuration)
}

func TestBuildTrackClampsShortTotal(t *testing.T) {
	cues, err := BuildTrack([]eventlog.Entry{{ElapsedMillis: 0, Text: "A"}, {ElapsedMillis: 3000, Text: "B"}}, 2500)
	require.NoError(t, err)
	require.Equal(t, int64(3000), cues[1].StartMillis)
	require.Equal(t, int64(3000), cues[1].EndMillis)
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00,000"},
		{999, "00:00:00,999"},
		{61_001, "00:01:01,001"},
		{3_600_000 + 2*60_000 + 3_004, "01:02:03,004"},
		{25 * 3_600_000, "01:00:00,000"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatTimestamp(tt.ms), "ms=%d", tt.ms)
	}
}

func TestRenderNormalizesText(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	doc, err := Generate([]eventlog.Entry{{ElapsedMillis: 0, Text: "Que\u0301stion"}}, 1000)
	require.NoError(t, err)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:01,000\nQu\u00e9stion", doc)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, []eventlog.Entry{{ElapsedMillis: 0, Text: "Only"}}, 1500)
	require.NoError(t, err)
	require.Equal(t, buf.Len(), n)
	require.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nOnly", buf.String())
}
