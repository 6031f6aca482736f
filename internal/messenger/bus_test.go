// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package messenger

import (
	"context"
	"testing"
	"time"

	"github.com/ManuGH/examcap/internal/metrics"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func counter(t *testing.T, action Action, outcome Outcome) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, metrics.MessagesTotal.WithLabelValues(string(action), string(outcome)).Write(m))
	return m.GetCounter().GetValue()
}

func mustMessage(t *testing.T, sender, target ContextID, action Action, payload any) Message {
	t.Helper()
	msg, err := NewMessage(sender, target, action, payload)
	require.NoError(t, err)
	return msg
}

func newBusWithContexts(t *testing.T, opts Options) (*Bus, *Mailbox, *Mailbox, ContextID) {
	t.Helper()
	b := New(opts)
	ctrl, err := b.Register(ControllerID, KindController)
	require.NoError(t, err)
	obsID := NewContextID()
	obs, err := b.Register(obsID, KindObserver)
	require.NoError(t, err)
	return b, ctrl, obs, obsID
}

func TestSendPreservesOrderPerTarget(t *testing.T) {
	b, ctrl, _, obsID := newBusWithContexts(t, Options{})
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		out := b.Send(ctx, mustMessage(t, obsID, ControllerID, ActionStoreTitle, StoreTitlePayload{Title: title}))
		require.Equal(t, OutcomeDelivered, out)
	}

	var got []string
	for range 3 {
		d := <-ctrl.C()
		var p StoreTitlePayload
		require.NoError(t, d.Message.Decode(&p))
		got = append(got, p.Title)
	}
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestSendToUnregisteredTargetIsStale(t *testing.T) {
	b, _, _, obsID := newBusWithContexts(t, Options{})
	b.Unregister(obsID)
	before := counter(t, ActionRecordingStoppedCallback, OutcomeStaleTarget)

	out := b.Send(context.Background(), mustMessage(t, ControllerID, obsID, ActionRecordingStoppedCallback, nil))
	assert.Equal(t, OutcomeStaleTarget, out)
	assert.Equal(t, before+1, counter(t, ActionRecordingStoppedCallback, OutcomeStaleTarget))
}

func TestSendDropsWhenMailboxFull(t *testing.T) {
	b, _, _, obsID := newBusWithContexts(t, Options{MailboxSize: 1})
	ctx := context.Background()

	require.Equal(t, OutcomeDelivered, b.Send(ctx, mustMessage(t, ControllerID, obsID, ActionRecordingStarted, nil)))
	assert.Equal(t, OutcomeDropped, b.Send(ctx, mustMessage(t, ControllerID, obsID, ActionRecordingStoppedCallback, nil)))
}

func TestSendRejectsInvalidMessages(t *testing.T) {
	b, _, _, obsID := newBusWithContexts(t, Options{})
	capID := NewContextID()
	_, err := b.Register(capID, KindCapture)
	require.NoError(t, err)

	wrongVersion := mustMessage(t, obsID, ControllerID, ActionStartRecording, nil)
	wrongVersion.Version = 2

	tests := []struct {
		name string
		msg  Message
	}{
		{"unknown action", mustMessage(t, obsID, ControllerID, Action("explode"), nil)},
		{"wrong version", wrongVersion},
		{"unregistered sender", mustMessage(t, NewContextID(), ControllerID, ActionStartRecording, nil)},
		{"capture may not start", mustMessage(t, capID, ControllerID, ActionStartRecording, nil)},
		{"observer may not notify", mustMessage(t, obsID, capID, ActionRecordingStarted, nil)},
		{"title from capture", mustMessage(t, capID, ControllerID, ActionStoreTitle, StoreTitlePayload{Title: "x"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, OutcomeRejected, b.Send(context.Background(), tt.msg))
		})
	}
}

func TestStopRecordingAllowedFromAnyKind(t *testing.T) {
	for _, k := range []Kind{KindController, KindObserver, KindCapture, KindPopup} {
		assert.True(t, ActionStopRecording.Allowed(k, KindController), k)
	}
	assert.False(t, ActionStopRecording.Allowed(KindPopup, KindObserver))
}

func TestMessageIsCopiedOnSend(t *testing.T) {
	b, ctrl, _, obsID := newBusWithContexts(t, Options{})
	msg := mustMessage(t, obsID, ControllerID, ActionStoreTitle, StoreTitlePayload{Title: "abc"})
	require.Equal(t, OutcomeDelivered, b.Send(context.Background(), msg))
	msg.Payload[0] = 'X'

	d := <-ctrl.C()
	var p StoreTitlePayload
	require.NoError(t, d.Message.Decode(&p))
	assert.Equal(t, "abc", p.Title)
}

func TestRequestReturnsAck(t *testing.T) {
	b, ctrl, _, obsID := newBusWithContexts(t, Options{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		d := <-ctrl.C()
		assert.True(t, d.WantsAck())
		d.Ack(Reply{Success: true, Message: "ok"})
		d.Ack(Reply{Success: false})
	}()

	reply, out := b.Request(context.Background(), mustMessage(t, obsID, ControllerID, ActionStopRecording, nil))
	<-done
	require.Equal(t, OutcomeDelivered, out)
	assert.Equal(t, Reply{Success: true, Message: "ok"}, reply)
}

func TestRequestTimesOutWithoutAck(t *testing.T) {
	b, ctrl, _, obsID := newBusWithContexts(t, Options{AckTimeout: 20 * time.Millisecond})

	_, out := b.Request(context.Background(), mustMessage(t, obsID, ControllerID, ActionStopRecording, nil))
	assert.Equal(t, OutcomeAckTimeout, out)
	assert.True(t, out.Delivered())

	// A late ack must not block the receiver.
	d := <-ctrl.C()
	d.Ack(Reply{Success: true})
}

func TestUnregisterClosesMailbox(t *testing.T) {
	b, _, obs, obsID := newBusWithContexts(t, Options{})
	require.Equal(t, OutcomeDelivered, b.Send(context.Background(), mustMessage(t, ControllerID, obsID, ActionRecordingStarted, nil)))
	b.Unregister(obsID)
	b.Unregister(obsID)

	d, ok := <-obs.C()
	require.True(t, ok, "pending delivery stays readable")
	assert.Equal(t, ActionRecordingStarted, d.Message.Action)
	_, ok = <-obs.C()
	assert.False(t, ok)
	<-obs.Done()
	assert.False(t, b.Registered(obsID))
}

func TestRegisterValidation(t *testing.T) {
	b := New(Options{})
	_, err := b.Register(ControllerID, KindController)
	require.NoError(t, err)

	_, err = b.Register(ControllerID, KindController)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = b.Register(NewContextID(), Kind("tab"))
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestDecodeEmptyPayload(t *testing.T) {
	msg := mustMessage(t, ControllerID, ControllerID, ActionStoreTitle, nil)
	var p StoreTitlePayload
	require.ErrorIs(t, msg.Decode(&p), ErrEmptyPayload)
}
