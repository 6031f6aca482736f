// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package messenger is the typed request/notification bus between
// execution contexts. Each registered context owns a bounded FIFO mailbox;
// sending never waits for the receiver to process a message.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	ErrAlreadyRegistered = errors.New("context already registered")
	ErrInvalidKind       = errors.New("invalid context kind")
	ErrEmptyPayload      = errors.New("message has no payload")
)

// Outcome describes what happened to a sent message.
type Outcome string

const (
	OutcomeDelivered   Outcome = "delivered"
	OutcomeStaleTarget Outcome = "stale_target"
	OutcomeDropped     Outcome = "dropped"
	OutcomeRejected    Outcome = "rejected"
	OutcomeAckTimeout  Outcome = "ack_timeout"
)

// Delivered reports whether the message reached the target mailbox.
func (o Outcome) Delivered() bool {
	return o == OutcomeDelivered || o == OutcomeAckTimeout
}

const (
	DefaultMailboxSize = 64
	DefaultAckTimeout  = 5 * time.Second
)

// Options configures a Bus.
type Options struct {
	MailboxSize int
	AckTimeout  time.Duration
}

// Delivery is a message handed to a receiver.
type Delivery struct {
	Message Message

	reply chan Reply
	once  sync.Once
}

// WantsAck reports whether the sender waits for an acknowledgement.
func (d *Delivery) WantsAck() bool {
	return d.reply != nil
}

// Ack answers the sender. Only the first call has an effect and it never
// blocks, even if the sender stopped waiting.
func (d *Delivery) Ack(r Reply) {
	if d.reply == nil {
		return
	}
	d.once.Do(func() {
		d.reply <- r
	})
}

// Mailbox is the receiving end of a registered context.
type Mailbox struct {
	id   ContextID
	kind Kind
	ch   chan *Delivery
	done chan struct{}
}

func (m *Mailbox) ID() ContextID       { return m.id }
func (m *Mailbox) Kind() Kind          { return m.kind }
func (m *Mailbox) C() <-chan *Delivery { return m.ch }

// Done is closed when the context is unregistered.
func (m *Mailbox) Done() <-chan struct{} { return m.done }

// Bus routes messages between registered contexts.
type Bus struct {
	mu         sync.RWMutex
	boxes      map[ContextID]*Mailbox
	size       int
	ackTimeout time.Duration
	logger     zerolog.Logger
	dropLog    rate.Sometimes
}

func New(opts Options) *Bus {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = DefaultAckTimeout
	}
	return &Bus{
		boxes:      make(map[ContextID]*Mailbox),
		size:       opts.MailboxSize,
		ackTimeout: opts.AckTimeout,
		logger:     xglog.WithComponent("messenger"),
		dropLog:    rate.Sometimes{First: 3, Interval: 10 * time.Second},
	}
}

// Register attaches a context and returns its mailbox.
func (b *Bus) Register(id ContextID, kind Kind) (*Mailbox, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("register %s: %w: %q", id, ErrInvalidKind, kind)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.boxes[id]; exists {
		return nil, fmt.Errorf("register %s: %w", id, ErrAlreadyRegistered)
	}
	mb := &Mailbox{
		id:   id,
		kind: kind,
		ch:   make(chan *Delivery, b.size),
		done: make(chan struct{}),
	}
	b.boxes[id] = mb
	metrics.RegisteredContexts.WithLabelValues(string(kind)).Inc()
	b.logger.Debug().
		Str(xglog.FieldEvent, "messenger.registered").
		Str(xglog.FieldContextID, string(id)).
		Str("kind", string(kind)).
		Msg("context registered")
	return mb, nil
}

// Unregister detaches a context. Pending deliveries stay readable from the
// mailbox channel, which is then closed. Unknown ids are ignored.
func (b *Bus) Unregister(id ContextID) {
	b.mu.Lock()
	mb, ok := b.boxes[id]
	if ok {
		delete(b.boxes, id)
		close(mb.done)
		close(mb.ch)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	metrics.RegisteredContexts.WithLabelValues(string(mb.kind)).Dec()
	b.logger.Debug().
		Str(xglog.FieldEvent, "messenger.unregistered").
		Str(xglog.FieldContextID, string(id)).
		Msg("context unregistered")
}

// KindOf returns the kind of a registered context.
func (b *Bus) KindOf(id ContextID) (Kind, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	mb, ok := b.boxes[id]
	if !ok {
		return "", false
	}
	return mb.kind, true
}

// Registered reports whether id is currently attached.
func (b *Bus) Registered(id ContextID) bool {
	_, ok := b.KindOf(id)
	return ok
}

// Send delivers msg at most once without waiting for the receiver.
func (b *Bus) Send(ctx context.Context, msg Message) Outcome {
	_, outcome := b.enqueue(ctx, msg, false)
	return outcome
}

// Request delivers msg and waits for the receiver's acknowledgement, up to
// the configured ack timeout or the context deadline.
func (b *Bus) Request(ctx context.Context, msg Message) (Reply, Outcome) {
	d, outcome := b.enqueue(ctx, msg, true)
	if outcome != OutcomeDelivered {
		return Reply{}, outcome
	}
	timer := time.NewTimer(b.ackTimeout)
	defer timer.Stop()
	select {
	case r := <-d.reply:
		return r, OutcomeDelivered
	case <-ctx.Done():
		return Reply{}, OutcomeAckTimeout
	case <-timer.C:
		return Reply{}, OutcomeAckTimeout
	}
}

func (b *Bus) enqueue(ctx context.Context, msg Message, wantAck bool) (*Delivery, Outcome) {
	msg = msg.Clone()
	logger := xglog.WithContext(ctx, b.logger).With().
		Str(xglog.FieldAction, string(msg.Action)).
		Str(xglog.FieldSender, string(msg.Sender)).
		Str(xglog.FieldTarget, string(msg.Target)).
		Logger()

	if reason := b.validate(msg); reason != "" {
		metrics.IncMessage(string(msg.Action), string(OutcomeRejected))
		logger.Warn().
			Str(xglog.FieldEvent, "messenger.rejected").
			Str(xglog.FieldOutcome, string(OutcomeRejected)).
			Str("reason", reason).
			Msg("message rejected")
		return nil, OutcomeRejected
	}

	d := &Delivery{Message: msg}
	if wantAck {
		d.reply = make(chan Reply, 1)
	}

	b.mu.RLock()
	mb, ok := b.boxes[msg.Target]
	if !ok {
		b.mu.RUnlock()
		metrics.IncMessage(string(msg.Action), string(OutcomeStaleTarget))
		logger.Info().
			Str(xglog.FieldEvent, "messenger.stale_target").
			Str(xglog.FieldOutcome, string(OutcomeStaleTarget)).
			Msg("target context is gone, message discarded")
		return nil, OutcomeStaleTarget
	}
	select {
	case mb.ch <- d:
		b.mu.RUnlock()
	default:
		kind := mb.kind
		b.mu.RUnlock()
		metrics.IncMessage(string(msg.Action), string(OutcomeDropped))
		metrics.IncMailboxDrop(string(kind), "full")
		b.dropLog.Do(func() {
			logger.Warn().
				Str(xglog.FieldEvent, "messenger.dropped").
				Str(xglog.FieldOutcome, string(OutcomeDropped)).
				Int("mailbox_size", b.size).
				Msg("target mailbox is full, message dropped")
		})
		return nil, OutcomeDropped
	}

	metrics.IncMessage(string(msg.Action), string(OutcomeDelivered))
	logger.Debug().
		Str(xglog.FieldEvent, "messenger.delivered").
		Str(xglog.FieldOutcome, string(OutcomeDelivered)).
		Msg("message delivered")
	return d, OutcomeDelivered
}

func (b *Bus) validate(msg Message) string {
	if msg.Version != ProtocolVersion {
		return fmt.Sprintf("unsupported protocol version %d", msg.Version)
	}
	if !msg.Action.Known() {
		return "unknown action"
	}
	from, ok := b.KindOf(msg.Sender)
	if !ok {
		return "sender is not registered"
	}
	to, ok := b.KindOf(msg.Target)
	if !ok {
		// Reported as a stale target by the caller.
		return ""
	}
	if !msg.Action.Allowed(from, to) {
		return fmt.Sprintf("%s not allowed from %s to %s", msg.Action, from, to)
	}
	return ""
}
