// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_session_start_requests_total",
		Help: "Start requests handled by the session coordinator by result (opened, refocused, open_failed)",
	}, []string{"result"})

	SessionStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_session_stop_requests_total",
		Help: "Stop requests handled by the session coordinator by result (accepted, nothing_to_stop)",
	}, []string{"result"})

	SessionCompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_session_completions_total",
		Help: "Completed sessions by completion callback delivery outcome",
	}, []string{"outcome"})

	SessionInvalidTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_session_invalid_transitions_total",
		Help: "Lifecycle events that had no edge in the transition table",
	}, []string{"from", "event"})

	SessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "examcap_session_active",
		Help: "1 while a capture window is open",
	})
)

func IncSessionStart(result string)       { SessionStartsTotal.WithLabelValues(result).Inc() }
func IncSessionStop(result string)        { SessionStopsTotal.WithLabelValues(result).Inc() }
func IncSessionCompletion(outcome string) { SessionCompletionsTotal.WithLabelValues(outcome).Inc() }

// IncInvalidTransition records a lifecycle event rejected by the transition table.
func IncInvalidTransition(from, event string) {
	SessionInvalidTransitionsTotal.WithLabelValues(from, event).Inc()
}

// SetSessionActive toggles the active session gauge.
func SetSessionActive(active bool) {
	if active {
		SessionActive.Set(1)
		return
	}
	SessionActive.Set(0)
}
