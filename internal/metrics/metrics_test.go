// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestIncMailboxDropDefaultsLabels(t *testing.T) {
	before := counterValue(t, MailboxDroppedTotal.WithLabelValues("unknown", "unknown"))
	IncMailboxDrop("", "")
	after := counterValue(t, MailboxDroppedTotal.WithLabelValues("unknown", "unknown"))
	require.Equal(t, before+1, after)
}

func TestObserveDerivationCountsFailures(t *testing.T) {
	before := counterValue(t, DerivationFailuresTotal.WithLabelValues("timelapse"))
	ObserveDerivation("timelapse", 0.5, false)
	ObserveDerivation("timelapse", 0.5, true)
	require.Equal(t, before+1, counterValue(t, DerivationFailuresTotal.WithLabelValues("timelapse")))
}

func TestSetSessionActive(t *testing.T) {
	SetSessionActive(true)
	m := &dto.Metric{}
	require.NoError(t, SessionActive.Write(m))
	require.Equal(t, 1.0, m.GetGauge().GetValue())

	SetSessionActive(false)
	require.NoError(t, SessionActive.Write(m))
	require.Equal(t, 0.0, m.GetGauge().GetValue())
}
