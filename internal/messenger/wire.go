// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package messenger

// FrameType tags a frame on the remote context bridge.
type FrameType string

const (
	// FrameMessage carries a Message in either direction.
	FrameMessage FrameType = "message"
	// FrameReply answers an inbound FrameMessage.
	FrameReply FrameType = "reply"
	// FrameError reports an inbound frame that was not processed.
	FrameError FrameType = "error"
)

// Frame is the JSON unit exchanged with out-of-process contexts. Inbound
// messages have their sender and version stamped by the bridge.
type Frame struct {
	Type    FrameType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	ReplyTo string    `json:"replyTo,omitempty"`
	Outcome Outcome   `json:"outcome,omitempty"`
	Reply   *Reply    `json:"reply,omitempty"`
	Error   string    `json:"error,omitempty"`
}
