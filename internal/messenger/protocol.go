// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package messenger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// ProtocolVersion is the version of the action vocabulary below. Messages
// carrying another version are rejected.
const ProtocolVersion = 1

// ContextID addresses one execution context.
type ContextID string

// ControllerID is the fixed address of the session coordinator.
const ControllerID ContextID = "controller"

// NewContextID returns a fresh random context address.
func NewContextID() ContextID {
	return ContextID(uuid.NewString())
}

// Kind classifies an execution context.
type Kind string

const (
	KindController Kind = "controller"
	KindObserver   Kind = "observer"
	KindCapture    Kind = "capture"
	KindPopup      Kind = "popup"
)

// Valid reports whether k is a known context kind.
func (k Kind) Valid() bool {
	switch k {
	case KindController, KindObserver, KindCapture, KindPopup:
		return true
	}
	return false
}

// Action is the closed set of message tags.
type Action string

const (
	ActionStartRecording           Action = "startRecording"
	ActionRecordingActuallyStarted Action = "recordingActuallyStarted"
	ActionStopRecording            Action = "stopRecording"
	ActionRecordingStarted         Action = "recordingStarted"
	ActionRecordingStoppedCallback Action = "recordingStoppedCallback"
	ActionStoreTitle               Action = "storeTitle"
)

type route struct {
	from []Kind // nil means any sender kind
	to   []Kind
}

var routes = map[Action]route{
	ActionStartRecording:           {from: []Kind{KindObserver, KindPopup}, to: []Kind{KindController}},
	ActionRecordingActuallyStarted: {from: []Kind{KindCapture}, to: []Kind{KindController}},
	ActionStopRecording:            {from: nil, to: []Kind{KindController}},
	ActionRecordingStarted:         {from: []Kind{KindController}, to: []Kind{KindObserver, KindPopup}},
	ActionRecordingStoppedCallback: {from: []Kind{KindController}, to: []Kind{KindObserver, KindPopup}},
	ActionStoreTitle:               {from: []Kind{KindObserver}, to: []Kind{KindController}},
}

// Known reports whether a is part of the vocabulary.
func (a Action) Known() bool {
	_, ok := routes[a]
	return ok
}

// Allowed reports whether a message with action a may travel from a
// context of kind from to one of kind to.
func (a Action) Allowed(from, to Kind) bool {
	r, ok := routes[a]
	if !ok {
		return false
	}
	if r.from != nil && !slices.Contains(r.from, from) {
		return false
	}
	return slices.Contains(r.to, to)
}

// StoreTitlePayload is the payload of ActionStoreTitle.
type StoreTitlePayload struct {
	Title string `json:"title"`
}

// Message is an immutable envelope. Construct it with NewMessage.
type Message struct {
	Version int             `json:"version"`
	ID      string          `json:"id"`
	Action  Action          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Sender  ContextID       `json:"sender"`
	Target  ContextID       `json:"target"`
}

// NewMessage builds a message; payload may be nil.
func NewMessage(sender, target ContextID, action Action, payload any) (Message, error) {
	msg := Message{
		Version: ProtocolVersion,
		ID:      uuid.NewString(),
		Action:  action,
		Sender:  sender,
		Target:  target,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", action, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// Clone returns a copy that shares no memory with m.
func (m Message) Clone() Message {
	m.Payload = bytes.Clone(m.Payload)
	return m
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("decode %s payload: %w", m.Action, ErrEmptyPayload)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Action, err)
	}
	return nil
}

// Reply is the optional acknowledgement returned by a receiver.
type Reply struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
