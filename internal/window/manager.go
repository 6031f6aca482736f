// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package window runs capture windows. A window is a runner goroutine with
// its own cancellable context; closing the window cancels that context and
// the window is gone once the runner returns.
package window

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownWindow = errors.New("unknown window")
	ErrShutdown      = errors.New("window manager is shut down")
)

// RunFunc is the body of a window. It returns when ctx is cancelled or the
// window has nothing left to do.
type RunFunc func(ctx context.Context, w *Window) error

// Window is the handle a runner uses to report status.
type Window struct {
	handle   string
	openedAt time.Time

	mu      sync.Mutex
	status  string
	focused int
	closing bool
}

func (w *Window) Handle() string { return w.handle }

// SetStatus replaces the user-visible status line.
func (w *Window) SetStatus(text string) {
	w.mu.Lock()
	w.status = text
	w.mu.Unlock()
}

// Info returns a copy of the window's observable state.
func (w *Window) Info() Info {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Info{
		Handle:   w.handle,
		Status:   w.status,
		Focused:  w.focused,
		Closing:  w.closing,
		OpenedAt: w.openedAt,
	}
}

// Info is a snapshot of a window.
type Info struct {
	Handle   string    `json:"handle"`
	Status   string    `json:"status"`
	Focused  int       `json:"focused"`
	Closing  bool      `json:"closing"`
	Closed   bool      `json:"closed"`
	OpenedAt time.Time `json:"openedAt"`
}

type entry struct {
	w      *Window
	cancel context.CancelFunc
}

// Manager opens and tracks windows.
type Manager struct {
	run    RunFunc
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	windows map[string]*entry
	last    *Info
	down    bool

	closed chan string
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewManager(run RunFunc) *Manager {
	return &Manager{
		run:     run,
		now:     time.Now,
		logger:  xglog.WithComponent("window"),
		windows: make(map[string]*entry),
		closed:  make(chan string, 8),
		done:    make(chan struct{}),
	}
}

// Open starts a new window. The runner keeps the values of ctx but not its
// cancellation; use Close to end it.
func (m *Manager) Open(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return "", ErrShutdown
	}

	handle := uuid.NewString()
	w := &Window{handle: handle, openedAt: m.now()}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.windows[handle] = &entry{w: w, cancel: cancel}

	logger := xglog.WithContext(ctx, m.logger).With().Str(xglog.FieldWindow, handle).Logger()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		err := m.run(runCtx, w)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).
				Str(xglog.FieldEvent, "window.run_failed").
				Msg("window runner failed")
		}
		m.finish(handle)
		logger.Info().Str(xglog.FieldEvent, "window.closed").Msg("window closed")
	}()

	logger.Info().Str(xglog.FieldEvent, "window.opened").Msg("window opened")
	return handle, nil
}

func (m *Manager) finish(handle string) {
	m.mu.Lock()
	if e, ok := m.windows[handle]; ok {
		info := e.w.Info()
		info.Closed = true
		m.last = &info
		delete(m.windows, handle)
	}
	m.mu.Unlock()

	select {
	case m.closed <- handle:
	case <-m.done:
	}
}

// Focus brings an open window to the front.
func (m *Manager) Focus(handle string) error {
	m.mu.Lock()
	e, ok := m.windows[handle]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("focus %s: %w", handle, ErrUnknownWindow)
	}
	e.w.mu.Lock()
	e.w.focused++
	e.w.mu.Unlock()
	return nil
}

// Close asks a window to close. Unknown handles and repeated calls are
// ignored.
func (m *Manager) Close(handle string) {
	m.mu.Lock()
	e, ok := m.windows[handle]
	m.mu.Unlock()
	if !ok {
		return
	}
	e.w.mu.Lock()
	e.w.closing = true
	e.w.mu.Unlock()
	e.cancel()
}

// Closed delivers the handle of each window once its runner has returned.
func (m *Manager) Closed() <-chan string {
	return m.closed
}

// Status reports an open window, or the most recently closed one.
func (m *Manager) Status(handle string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.windows[handle]; ok {
		return e.w.Info(), true
	}
	if m.last != nil && m.last.Handle == handle {
		return *m.last, true
	}
	return Info{}, false
}

// Last reports the most recently closed window.
func (m *Manager) Last() (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Info{}, false
	}
	return *m.last, true
}

// Shutdown closes every window and waits for the runners, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.down {
		m.down = true
		close(m.done)
	}
	for _, e := range m.windows {
		e.cancel()
	}
	m.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
