// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_messenger_messages_total",
		Help: "Messages offered to the context messenger by action and delivery outcome",
	}, []string{"action", "outcome"})

	MailboxDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_messenger_dropped_total",
		Help: "Messages dropped by the context messenger by context kind and reason",
	}, []string{"kind", "reason"})

	RegisteredContexts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "examcap_messenger_contexts",
		Help: "Currently registered execution contexts by kind",
	}, []string{"kind"})
)

// IncMessage records a message send attempt.
func IncMessage(action, outcome string) {
	if action == "" {
		action = "unknown"
	}
	MessagesTotal.WithLabelValues(action, outcome).Inc()
}

// IncMailboxDrop records a dropped message with a concrete reason.
func IncMailboxDrop(kind, reason string) {
	if kind == "" {
		kind = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	MailboxDroppedTotal.WithLabelValues(kind, reason).Inc()
}
