// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package coordinator

// Phase is the coarse lifecycle phase of the recording session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLaunching Phase = "launching"
	PhaseActive    Phase = "active"
	PhaseStopping  Phase = "stopping"
)

// EventKind names an input to the session state machine.
type EventKind string

const (
	EvStartRequested EventKind = "start_requested"
	EvOpenFailed     EventKind = "open_failed"
	EvStarted        EventKind = "started"
	EvStopRequested  EventKind = "stop_requested"
	EvWindowClosed   EventKind = "window_closed"
)

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From  Phase
	To    Phase
	Event EventKind
}

var transitionsTable = []Transition{
	// Start path
	{From: PhaseIdle, To: PhaseLaunching, Event: EvStartRequested},
	{From: PhaseLaunching, To: PhaseIdle, Event: EvOpenFailed},
	{From: PhaseLaunching, To: PhaseActive, Event: EvStarted},

	// Stop intent
	{From: PhaseLaunching, To: PhaseStopping, Event: EvStopRequested},
	{From: PhaseActive, To: PhaseStopping, Event: EvStopRequested},

	// A capture that reports late while a stop is already pending.
	{From: PhaseStopping, To: PhaseStopping, Event: EvStarted},

	// Terminal: the window is gone, whatever closed it.
	{From: PhaseLaunching, To: PhaseIdle, Event: EvWindowClosed},
	{From: PhaseActive, To: PhaseIdle, Event: EvWindowClosed},
	{From: PhaseStopping, To: PhaseIdle, Event: EvWindowClosed},
}

// TransitionFor returns the allowed transition for a given phase+event.
func TransitionFor(from Phase, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
