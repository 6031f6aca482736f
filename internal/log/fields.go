// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID = "session_id"
	FieldContextID = "context_id"
	FieldRequestID = "request_id"
	FieldWindow    = "window"

	// Messaging fields
	FieldAction  = "action"
	FieldSender  = "sender"
	FieldTarget  = "target"
	FieldOutcome = "outcome"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Media fields
	FieldFPS  = "fps"
	FieldRate = "rate"
	FieldPath = "path"
)
