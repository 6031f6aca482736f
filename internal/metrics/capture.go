// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CaptureAcquireTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_capture_acquire_total",
		Help: "Capture acquisition attempts by result (granted, denied, failed)",
	}, []string{"result"})

	CaptureBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "examcap_capture_bytes_total",
		Help: "Bytes buffered from capture streams",
	})

	CaptureEndedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_capture_ended_total",
		Help: "Capture sessions finalized by trigger (closed, stream_ended)",
	}, []string{"trigger"})

	DerivationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "examcap_derivation_duration_seconds",
		Help:    "Duration of post-capture derivation stages",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"stage"})

	DerivationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "examcap_derivation_failures_total",
		Help: "Failed post-capture derivation stages",
	}, []string{"stage"})
)

func IncCaptureAcquire(result string) { CaptureAcquireTotal.WithLabelValues(result).Inc() }
func AddCaptureBytes(n int)           { CaptureBytesTotal.Add(float64(n)) }
func IncCaptureEnded(trigger string)  { CaptureEndedTotal.WithLabelValues(trigger).Inc() }

// ObserveDerivation records the outcome of one derivation stage.
func ObserveDerivation(stage string, seconds float64, failed bool) {
	DerivationDuration.WithLabelValues(stage).Observe(seconds)
	if failed {
		DerivationFailuresTotal.WithLabelValues(stage).Inc()
	}
}
