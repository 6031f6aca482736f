// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by spans.
const (
	SessionIDKey = "session.id"

	// Derivation attributes
	DeriveStageKey    = "derive.stage"
	DeriveBaseNameKey = "derive.base_name"
	DeriveOutputKey   = "derive.output"
	DeriveBytesKey    = "derive.bytes"

	// Recording attributes
	RecordingBytesKey      = "recording.bytes"
	RecordingDurationKey   = "recording.duration_ms"
	RecordingTitleCountKey = "recording.titles"

	// Timelapse attributes
	TimelapseModeKey = "timelapse.mode"
	TimelapseRateKey = "timelapse.rate"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// RecordingAttributes describes the recording being derived.
func RecordingAttributes(baseName string, bytes int, durationMS int64, titles int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DeriveBaseNameKey, baseName),
		attribute.Int(RecordingBytesKey, bytes),
		attribute.Int64(RecordingDurationKey, durationMS),
		attribute.Int(RecordingTitleCountKey, titles),
	}
}

// StageAttributes describes one derivation stage and its output file.
func StageAttributes(stage, output string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(DeriveStageKey, stage)}
	if output != "" {
		attrs = append(attrs, attribute.String(DeriveOutputKey, output))
	}
	return attrs
}

// TimelapseAttributes describes the re-timing parameters.
func TimelapseAttributes(mode string, rate float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TimelapseModeKey, mode),
		attribute.Float64(TimelapseRateKey, rate),
	}
}

// ErrorAttributes marks a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
