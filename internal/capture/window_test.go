// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package capture_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/examcap/internal/capture"
	"github.com/ManuGH/examcap/internal/capture/capturetest"
	"github.com/ManuGH/examcap/internal/eventlog"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/ManuGH/examcap/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type surface struct {
	handle string
	mu     sync.Mutex
	status []string
}

func (s *surface) Handle() string { return s.handle }

func (s *surface) SetStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, text)
}

func (s *surface) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.status) == 0 {
		return ""
	}
	return s.status[len(s.status)-1]
}

type recordingDeriver struct {
	mu      sync.Mutex
	calls   int
	media   []byte
	total   int64
	entries []eventlog.Entry
}

func (d *recordingDeriver) Derive(_ context.Context, art *capture.Artifact, entries []eventlog.Entry) string {
	chunks, _ := art.Consume()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.media = bytes.Join(chunks, nil)
	d.total = art.TotalMillis()
	d.entries = entries
	return fmt.Sprintf("Saved %d titles.", len(entries))
}

type runnerFixture struct {
	bus      *messenger.Bus
	ctrl     *messenger.Mailbox
	acquirer *capturetest.Acquirer
	settings *store.Settings
	deriver  *recordingDeriver
	surface  *surface
	runner   *capture.Runner
}

func newRunnerFixture(t *testing.T, closeDelay time.Duration) *runnerFixture {
	t.Helper()
	bus := messenger.New(messenger.Options{})
	ctrl, err := bus.Register(messenger.ControllerID, messenger.KindController)
	require.NoError(t, err)
	settings := store.NewSettings(store.NewMemoryStore(), store.DefaultFPS)
	f := &runnerFixture{
		bus:      bus,
		ctrl:     ctrl,
		acquirer: capturetest.NewAcquirer(),
		settings: settings,
		deriver:  &recordingDeriver{},
		surface:  &surface{handle: uuid.NewString()},
	}
	f.runner = capture.NewRunner(capture.WindowConfig{
		Acquirer:      f.acquirer,
		Settings:      settings,
		Titles:        settings,
		Bus:           bus,
		Deriver:       f.deriver,
		TitleInterval: 5 * time.Millisecond,
		CloseDelay:    closeDelay,
	})
	return f
}

func (f *runnerFixture) start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx, f.surface) }()
	return done
}

func waitStream(t *testing.T, a *capturetest.Acquirer) *capturetest.Stream {
	t.Helper()
	select {
	case s := <-a.Acquired:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("stream not acquired")
		return nil
	}
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not return")
	}
}

func TestRunnerExplicitCloseDerivesOutputs(t *testing.T) {
	f := newRunnerFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.settings.SetFPS(ctx, 12))
	require.NoError(t, f.settings.SetLatestTitle(ctx, "Question 1"))

	done := f.start(ctx)
	stream := waitStream(t, f.acquirer)
	stream.Emit([]byte("frame-1"))
	stream.Emit([]byte("frame-2"))

	d := <-f.ctrl.C()
	assert.Equal(t, messenger.ActionRecordingActuallyStarted, d.Message.Action)
	assert.Equal(t, messenger.ContextID(f.surface.handle), d.Message.Sender)

	cancel()
	waitDone(t, done)

	assert.Equal(t, []capture.Options{{FPS: 12}}, f.acquirer.Options())
	assert.Equal(t, 1, f.deriver.calls)
	assert.Equal(t, []byte("frame-1frame-2"), f.deriver.media)
	require.NotEmpty(t, f.deriver.entries)
	assert.Equal(t, eventlog.Entry{ElapsedMillis: 0, Text: "Question 1"}, f.deriver.entries[0])
	assert.Equal(t, "Saved 1 titles.", f.surface.last())
	assert.GreaterOrEqual(t, stream.Stops(), 1)
	assert.False(t, f.bus.Registered(messenger.ContextID(f.surface.handle)))
}

func TestRunnerNativeStopDerivesOutputs(t *testing.T) {
	f := newRunnerFixture(t, time.Second)
	done := f.start(context.Background())

	stream := waitStream(t, f.acquirer)
	stream.Emit([]byte("x"))
	stream.End()
	waitDone(t, done)

	assert.Equal(t, 1, f.deriver.calls)
	assert.Equal(t, []byte("x"), f.deriver.media)
	assert.Empty(t, f.deriver.entries)
}

func TestRunnerConsentDenied(t *testing.T) {
	f := newRunnerFixture(t, 10*time.Millisecond)
	f.acquirer.Err = fmt.Errorf("%w: user cancelled", capture.ErrPermission)

	waitDone(t, f.start(context.Background()))
	assert.Equal(t, capture.StatusConsentFailed, f.surface.last())
	assert.Zero(t, f.deriver.calls)

	select {
	case d := <-f.ctrl.C():
		t.Fatalf("unexpected message %s", d.Message.Action)
	default:
	}
}

func TestRunnerConsentDeniedCloseCutsDelayShort(t *testing.T) {
	f := newRunnerFixture(t, time.Hour)
	f.acquirer.Err = capture.ErrPermission
	ctx, cancel := context.WithCancel(context.Background())

	done := f.start(ctx)
	require.Eventually(t, func() bool {
		return f.surface.last() == capture.StatusConsentFailed
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitDone(t, done)
}

func TestRunnerRecordsTitleChanges(t *testing.T) {
	f := newRunnerFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := f.start(ctx)
	waitStream(t, f.acquirer)
	<-f.ctrl.C()

	require.NoError(t, f.settings.SetLatestTitle(ctx, "Part A"))
	require.Eventually(t, func() bool {
		return f.surface.last() == capture.StatusRecording
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
	waitDone(t, done)

	require.Len(t, f.deriver.entries, 1)
	assert.Equal(t, "Part A", f.deriver.entries[0].Text)
}

// stuckStream ends but never flushes its chunk channel.
type stuckStream struct {
	chunks chan []byte
	ended  chan struct{}
}

func (s *stuckStream) Chunks() <-chan []byte      { return s.chunks }
func (s *stuckStream) Ended() <-chan struct{}     { return s.ended }
func (s *stuckStream) Stop(context.Context) error { return nil }
func (s *stuckStream) release()                   { close(s.chunks) }

type stuckAcquirer struct{ stream *stuckStream }

func (a stuckAcquirer) Acquire(context.Context, capture.Options) (capture.Stream, error) {
	return a.stream, nil
}

func TestRunnerFinalizeFailureReportsProcessingError(t *testing.T) {
	bus := messenger.New(messenger.Options{})
	_, err := bus.Register(messenger.ControllerID, messenger.KindController)
	require.NoError(t, err)
	settings := store.NewSettings(store.NewMemoryStore(), store.DefaultFPS)
	stream := &stuckStream{chunks: make(chan []byte), ended: make(chan struct{})}
	t.Cleanup(stream.release)
	close(stream.ended)

	deriver := &recordingDeriver{}
	surf := &surface{handle: uuid.NewString()}
	runner := capture.NewRunner(capture.WindowConfig{
		Acquirer:      stuckAcquirer{stream: stream},
		Settings:      settings,
		Titles:        settings,
		Bus:           bus,
		Deriver:       deriver,
		TitleInterval: 5 * time.Millisecond,
		FlushTimeout:  20 * time.Millisecond,
	})

	err = runner.Run(context.Background(), surf)
	require.Error(t, err)
	assert.Equal(t, capture.StatusFinalizeFail, surf.last())
	assert.NotEqual(t, capture.StatusConsentFailed, surf.last())
	assert.Zero(t, deriver.calls)
}
