// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/examcap/internal/coordinator"
	"github.com/ManuGH/examcap/internal/store"
	"github.com/ManuGH/examcap/internal/window"
)

// SessionResponse is the coordinator snapshot plus the capture window the
// session refers to, or the last window when idle.
type SessionResponse struct {
	Session coordinator.SessionState `json:"session"`
	Window  *window.Info             `json:"window,omitempty"`
}

// SettingsBody is the settings resource.
type SettingsBody struct {
	FPS int `json:"fps"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	resp := SessionResponse{Session: s.cfg.Session.Snapshot()}
	if s.cfg.Windows != nil {
		var (
			info window.Info
			ok   bool
		)
		if resp.Session.Active() {
			info, ok = s.cfg.Windows.Status(resp.Session.WindowHandle)
		} else {
			info, ok = s.cfg.Windows.Last()
		}
		if ok {
			resp.Window = &info
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	fps, err := s.cfg.Settings.FPS(r.Context())
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SettingsBody{FPS: fps})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body SettingsBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := s.cfg.Settings.SetFPS(r.Context(), body.FPS); err != nil {
		if errors.Is(err, store.ErrInvalidFPS) {
			writeError(w, r, http.StatusUnprocessableEntity, CodeUnprocessable, err.Error())
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}
