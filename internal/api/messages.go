// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/examcap/internal/messenger"
)

// MessageRequest is a one-shot message from a remote context. Target
// defaults to the controller.
type MessageRequest struct {
	Sender  messenger.ContextID `json:"sender"`
	Target  messenger.ContextID `json:"target,omitempty"`
	Action  messenger.Action    `json:"action"`
	Payload json.RawMessage     `json:"payload,omitempty"`
}

// MessageResponse reports the delivery outcome and the receiver's reply.
type MessageResponse struct {
	ID      string            `json:"id"`
	Outcome messenger.Outcome `json:"outcome"`
	Reply   *messenger.Reply  `json:"reply,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if !s.isRemote(req.Sender) {
		writeError(w, r, http.StatusForbidden, CodeForbidden, "sender is not a registered remote context")
		return
	}
	msg, err := s.buildMessage(req.Sender, req.Target, req.Action, req.Payload)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	reply, outcome := s.bus.Request(r.Context(), msg)
	resp := MessageResponse{ID: msg.ID, Outcome: outcome}
	if outcome.Delivered() {
		resp.Reply = &reply
	}
	writeJSON(w, statusForOutcome(outcome), resp)
}

// buildMessage stamps protocol fields on a message originating from a
// remote context.
func (s *Server) buildMessage(sender, target messenger.ContextID, action messenger.Action, payload json.RawMessage) (messenger.Message, error) {
	if target == "" {
		target = messenger.ControllerID
	}
	msg, err := messenger.NewMessage(sender, target, action, nil)
	if err != nil {
		return messenger.Message{}, err
	}
	if len(payload) > 0 && string(payload) != "null" {
		msg.Payload = payload
	}
	return msg, nil
}

func statusForOutcome(o messenger.Outcome) int {
	switch o {
	case messenger.OutcomeDelivered:
		return http.StatusOK
	case messenger.OutcomeStaleTarget:
		return http.StatusNotFound
	case messenger.OutcomeRejected:
		return http.StatusUnprocessableEntity
	case messenger.OutcomeDropped:
		return http.StatusServiceUnavailable
	case messenger.OutcomeAckTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
