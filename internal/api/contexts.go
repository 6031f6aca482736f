// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/go-chi/chi/v5"
)

// RegisterRequest asks for a new out-of-process context.
type RegisterRequest struct {
	Kind   messenger.Kind `json:"kind"`
	Origin string         `json:"origin,omitempty"`
}

// RegisterResponse carries the assigned context address.
type RegisterResponse struct {
	ID              messenger.ContextID `json:"id"`
	Kind            messenger.Kind      `json:"kind"`
	ProtocolVersion int                 `json:"protocolVersion"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Kind != messenger.KindObserver && req.Kind != messenger.KindPopup {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "kind must be observer or popup")
		return
	}
	origin := req.Origin
	if origin == "" {
		origin = r.Header.Get("Origin")
	}
	if origin != "" && !s.origins.Allowed(origin) {
		writeError(w, r, http.StatusForbidden, CodeForbidden, "origin not allowed")
		return
	}

	id := messenger.NewContextID()
	mb, err := s.bus.Register(id, req.Kind)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
		return
	}
	s.mu.Lock()
	s.remote[id] = &remoteContext{mailbox: mb}
	s.mu.Unlock()

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldEvent, "context.registered").
		Str(xglog.FieldContextID, string(id)).
		Str("kind", string(req.Kind)).
		Msg("remote context registered")
	writeJSON(w, http.StatusCreated, RegisterResponse{ID: id, Kind: req.Kind, ProtocolVersion: messenger.ProtocolVersion})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id := messenger.ContextID(chi.URLParam(r, "id"))
	if !s.release(id) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown context")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// release forgets an HTTP-registered context and removes it from the bus.
// Contexts owned by the daemon itself cannot be released here.
func (s *Server) release(id messenger.ContextID) bool {
	s.mu.Lock()
	_, ok := s.remote[id]
	delete(s.remote, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.bus.Unregister(id)
	s.logger.Info().
		Str(xglog.FieldEvent, "context.unregistered").
		Str(xglog.FieldContextID, string(id)).
		Msg("remote context unregistered")
	return true
}

// attach claims the mailbox of a remote context for a single connection.
func (s *Server) attach(id messenger.ContextID) (*messenger.Mailbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.remote[id]
	if !ok || rc.attached {
		return nil, false
	}
	rc.attached = true
	return rc.mailbox, true
}

func (s *Server) isRemote(id messenger.ContextID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.remote[id]
	return ok
}
