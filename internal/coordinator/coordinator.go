// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package coordinator owns the single recording session. It launches the
// capture window, refuses duplicate sessions, routes stop requests and
// notifies the originating context exactly once when the session ends.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/ManuGH/examcap/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNoBus        = errors.New("coordinator requires a messenger bus")
	ErrNoWindows    = errors.New("coordinator requires a window opener")
	ErrNotObserver  = errors.New("titles are only accepted from observer contexts")
	ErrTitleStorage = errors.New("title storage unavailable")
)

// ReasonNothingToStop is reported when a stop request finds no running
// session or a stop already in flight.
const ReasonNothingToStop = "nothing to stop"

// Start acknowledgement texts.
const (
	ReplyWindowOpened  = "recording window opened"
	ReplyAlreadyActive = "recording already active"
)

// WindowOpener creates and controls capture windows. Handles are opaque
// and double as the capture context address on the messenger.
type WindowOpener interface {
	Open(ctx context.Context) (string, error)
	Focus(handle string) error
	Close(handle string)
}

// TitleSink persists the most recently observed page title.
type TitleSink interface {
	SetLatestTitle(ctx context.Context, title string) error
}

// SessionState is a copy of the coordinator's view of the session.
type SessionState struct {
	SessionID    string              `json:"sessionId,omitempty"`
	Phase        Phase               `json:"phase"`
	WindowHandle string              `json:"windowHandle,omitempty"`
	Origin       messenger.ContextID `json:"origin,omitempty"`
	Stopping     bool                `json:"stopping"`
	StartedAt    time.Time           `json:"startedAt,omitzero"`
}

// Active reports whether a capture window exists.
func (s SessionState) Active() bool {
	return s.WindowHandle != ""
}

// StartResult describes the effect of a start request.
type StartResult struct {
	SessionID string
	Handle    string
	Refocused bool
}

// StopResult describes the effect of a stop request.
type StopResult struct {
	Accepted bool
	Reason   string
}

// Config wires a Coordinator.
type Config struct {
	Bus     *messenger.Bus
	Windows WindowOpener
	// Closed delivers the handle of every capture window that went away.
	Closed <-chan string
	Titles TitleSink
	Now    func() time.Time
}

// Coordinator is the controller context.
type Coordinator struct {
	bus     *messenger.Bus
	mailbox *messenger.Mailbox
	windows WindowOpener
	closed  <-chan string
	titles  TitleSink
	now     func() time.Time
	logger  zerolog.Logger

	mu    sync.Mutex
	state SessionState
}

// New registers the controller context on the bus.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Bus == nil {
		return nil, ErrNoBus
	}
	if cfg.Windows == nil {
		return nil, ErrNoWindows
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	mb, err := cfg.Bus.Register(messenger.ControllerID, messenger.KindController)
	if err != nil {
		return nil, fmt.Errorf("register controller: %w", err)
	}
	return &Coordinator{
		bus:     cfg.Bus,
		mailbox: mb,
		windows: cfg.Windows,
		closed:  cfg.Closed,
		titles:  cfg.Titles,
		now:     cfg.Now,
		logger:  xglog.WithComponent("coordinator"),
		state:   SessionState{Phase: PhaseIdle},
	}, nil
}

// Snapshot returns a copy of the current session state.
func (c *Coordinator) Snapshot() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestStart opens a capture window for origin, or focuses the existing
// one when a session is already running.
func (c *Coordinator) RequestStart(ctx context.Context, origin messenger.ContextID) (StartResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		logger := c.sessionLogger(ctx)
		if err := c.windows.Focus(c.state.WindowHandle); err != nil {
			logger.Warn().Err(err).
				Str(xglog.FieldEvent, "session.refocus_failed").
				Msg("failed to focus existing capture window")
		}
		metrics.IncSessionStart("refocused")
		logger.Info().
			Str(xglog.FieldEvent, "session.refocused").
			Str("requested_by", string(origin)).
			Msg("recording already active, focused existing window")
		return StartResult{SessionID: c.state.SessionID, Handle: c.state.WindowHandle, Refocused: true}, nil
	}

	if !c.apply(ctx, EvStartRequested) {
		metrics.IncSessionStart("invalid")
		return StartResult{}, fmt.Errorf("start from phase %s: invalid transition", c.state.Phase)
	}
	c.state.SessionID = uuid.NewString()
	c.state.Origin = origin
	c.state.Stopping = false
	logger := c.sessionLogger(ctx)

	handle, err := c.windows.Open(xglog.ContextWithSessionID(ctx, c.state.SessionID))
	if err != nil {
		c.apply(ctx, EvOpenFailed)
		c.reset()
		metrics.IncSessionStart("open_failed")
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "session.open_failed").
			Msg("failed to open capture window")
		return StartResult{}, fmt.Errorf("open capture window: %w", err)
	}

	c.state.WindowHandle = handle
	c.state.StartedAt = c.now()
	metrics.IncSessionStart("opened")
	metrics.SetSessionActive(true)
	logger.Info().
		Str(xglog.FieldEvent, "session.start").
		Str(xglog.FieldWindow, handle).
		Msg("capture window opened")
	return StartResult{SessionID: c.state.SessionID, Handle: handle}, nil
}

// NotifyStarted is called once the capture window holds a live stream and
// forwards recordingStarted to the origin. Reports from windows other than
// the current one are ignored.
func (c *Coordinator) NotifyStarted(ctx context.Context, handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.sessionLogger(ctx)
	if !c.state.Active() || handle != c.state.WindowHandle {
		logger.Info().
			Str(xglog.FieldEvent, "session.stale_started").
			Str(xglog.FieldWindow, handle).
			Msg("start report from a window that is not current, ignored")
		return
	}
	if !c.apply(ctx, EvStarted) {
		return
	}
	if c.state.Stopping {
		logger.Info().
			Str(xglog.FieldEvent, "session.started_while_stopping").
			Msg("capture started after stop was accepted, origin not notified")
		return
	}
	logger.Info().
		Str(xglog.FieldEvent, "session.recording").
		Msg("capture is recording")
	c.notifyOrigin(ctx, messenger.ActionRecordingStarted)
}

// RequestStop asks the active session to stop by closing its window. A
// request without a running session, or while a stop is already pending,
// has no effect.
func (c *Coordinator) RequestStop(ctx context.Context, from messenger.ContextID) StopResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.sessionLogger(ctx)
	if !c.state.Active() || c.state.Stopping {
		metrics.IncSessionStop("ignored")
		logger.Info().
			Str(xglog.FieldEvent, "session.stop_ignored").
			Str("requested_by", string(from)).
			Msg(ReasonNothingToStop)
		return StopResult{Accepted: false, Reason: ReasonNothingToStop}
	}
	if !c.apply(ctx, EvStopRequested) {
		metrics.IncSessionStop("invalid")
		return StopResult{Accepted: false, Reason: ReasonNothingToStop}
	}
	c.state.Stopping = true
	c.windows.Close(c.state.WindowHandle)
	metrics.IncSessionStop("accepted")
	logger.Info().
		Str(xglog.FieldEvent, "session.stop").
		Str("requested_by", string(from)).
		Msg("stop requested, closing capture window")
	return StopResult{Accepted: true}
}

// OnWindowClosed is the only terminal transition. It notifies the origin
// once and resets to idle when handle belongs to the current session.
func (c *Coordinator) OnWindowClosed(ctx context.Context, handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.sessionLogger(ctx)
	if !c.state.Active() || handle != c.state.WindowHandle {
		logger.Debug().
			Str(xglog.FieldEvent, "session.foreign_close").
			Str(xglog.FieldWindow, handle).
			Msg("closed window is not the current session, ignored")
		return
	}

	c.apply(ctx, EvWindowClosed)
	outcome := "ended"
	if c.state.Stopping {
		outcome = "stopped"
	}
	c.notifyOrigin(ctx, messenger.ActionRecordingStoppedCallback)
	metrics.IncSessionCompletion(outcome)
	metrics.SetSessionActive(false)
	logger.Info().
		Str(xglog.FieldEvent, "session.end").
		Str(xglog.FieldOutcome, outcome).
		Dur("duration", c.now().Sub(c.state.StartedAt)).
		Msg("recording session finished")
	c.reset()
}

// StoreTitle records the latest page title reported by an observer.
func (c *Coordinator) StoreTitle(ctx context.Context, sender messenger.ContextID, title string) error {
	if kind, ok := c.bus.KindOf(sender); !ok || kind != messenger.KindObserver {
		return fmt.Errorf("store title from %s: %w", sender, ErrNotObserver)
	}
	if c.titles == nil {
		return ErrTitleStorage
	}
	if err := c.titles.SetLatestTitle(ctx, title); err != nil {
		return fmt.Errorf("store title: %w", err)
	}
	return nil
}

// apply moves the state machine along ev. Edges outside the table are
// logged and counted and leave the phase unchanged. Callers hold c.mu.
func (c *Coordinator) apply(ctx context.Context, ev EventKind) bool {
	from := c.state.Phase
	tr, ok := TransitionFor(from, ev)
	if !ok {
		metrics.IncInvalidTransition(string(from), string(ev))
		logger := c.sessionLogger(ctx)
		logger.Warn().
			Str(xglog.FieldEvent, "session.invalid_transition").
			Str(xglog.FieldOldState, string(from)).
			Str("input", string(ev)).
			Msg("transition not allowed")
		return false
	}
	c.state.Phase = tr.To
	logger := c.sessionLogger(ctx)
	logger.Debug().
		Str(xglog.FieldEvent, "session.transition").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(tr.To)).
		Msg("session transition")
	return true
}

func (c *Coordinator) reset() {
	c.state = SessionState{Phase: PhaseIdle}
}

// notifyOrigin sends a one-way notification to the session origin. A gone
// origin is logged by the messenger and not retried. Callers hold c.mu.
func (c *Coordinator) notifyOrigin(ctx context.Context, action messenger.Action) {
	if c.state.Origin == "" {
		return
	}
	msg, err := messenger.NewMessage(messenger.ControllerID, c.state.Origin, action, nil)
	if err != nil {
		c.logger.Error().Err(err).Str(xglog.FieldAction, string(action)).Msg("build notification")
		return
	}
	c.bus.Send(xglog.ContextWithSessionID(ctx, c.state.SessionID), msg)
}

func (c *Coordinator) sessionLogger(ctx context.Context) zerolog.Logger {
	if c.state.SessionID != "" {
		ctx = xglog.ContextWithSessionID(ctx, c.state.SessionID)
	}
	return xglog.WithContext(ctx, c.logger)
}
