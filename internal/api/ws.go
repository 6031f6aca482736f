// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	wsPingInterval  = 30 * time.Second
	wsReadDeadline  = 60 * time.Second
	wsWriteDeadline = 10 * time.Second
	wsMaxFrameBytes = 64 << 10
)

// handleWebSocket bridges a remote context's mailbox to a WebSocket. The
// context is unregistered when the connection ends.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := messenger.ContextID(chi.URLParam(r, "id"))
	mb, ok := s.attach(id)
	if !ok {
		if s.isRemote(id) {
			writeError(w, r, http.StatusConflict, CodeConflict, "context already has a connection")
			return
		}
		writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown context")
		return
	}
	defer s.release(id)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "ws.upgrade_failed").
			Str(xglog.FieldContextID, string(id)).
			Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	b := &bridge{
		id:      id,
		conn:    conn,
		bus:     s.bus,
		mailbox: mb,
		limiter: rate.NewLimiter(rate.Limit(s.cfg.WSMessageRate), s.cfg.WSMessageBurst),
		out:     make(chan messenger.Frame, 16),
		logger: s.logger.With().
			Str(xglog.FieldContextID, string(id)).
			Logger(),
	}
	b.logger.Info().Str(xglog.FieldEvent, "ws.connected").Msg("remote context connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		b.readLoop(ctx)
	}()

	b.writeLoop(ctx)
	cancel()
	_ = conn.Close()
	wg.Wait()
	b.logger.Info().Str(xglog.FieldEvent, "ws.disconnected").Msg("remote context disconnected")
}

type bridge struct {
	id      messenger.ContextID
	conn    *websocket.Conn
	bus     *messenger.Bus
	mailbox *messenger.Mailbox
	limiter *rate.Limiter
	out     chan messenger.Frame
	logger  zerolog.Logger
}

// writeLoop is the only writer on the connection. It forwards mailbox
// deliveries in order, followed by replies produced by the reader.
func (b *bridge) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.writeClose(websocket.CloseGoingAway, "")
			return

		case d, ok := <-b.mailbox.C():
			if !ok {
				b.writeClose(websocket.CloseNormalClosure, "context unregistered")
				return
			}
			msg := d.Message
			err := b.write(messenger.Frame{Type: messenger.FrameMessage, Message: &msg})
			if d.WantsAck() {
				d.Ack(messenger.Reply{Success: err == nil})
			}
			if err != nil {
				return
			}

		case f := <-b.out:
			if err := b.write(f); err != nil {
				return
			}

		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (b *bridge) write(f messenger.Frame) error {
	_ = b.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
	if err := b.conn.WriteJSON(f); err != nil {
		b.logger.Debug().Err(err).Str(xglog.FieldEvent, "ws.write_failed").Msg("websocket write failed")
		return err
	}
	return nil
}

func (b *bridge) writeClose(code int, text string) {
	deadline := time.Now().Add(wsWriteDeadline)
	_ = b.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// readLoop turns inbound frames into messenger requests from this context.
func (b *bridge) readLoop(ctx context.Context) {
	b.conn.SetReadLimit(wsMaxFrameBytes)
	_ = b.conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.Debug().Err(err).Str(xglog.FieldEvent, "ws.read_failed").Msg("websocket read failed")
			}
			return
		}
		_ = b.conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		var in messenger.Frame
		if err := json.Unmarshal(data, &in); err != nil || in.Type != messenger.FrameMessage || in.Message == nil {
			b.reply(ctx, messenger.Frame{Type: messenger.FrameError, Error: "malformed frame"})
			continue
		}
		if !b.limiter.Allow() {
			b.reply(ctx, messenger.Frame{Type: messenger.FrameError, ReplyTo: in.Message.ID, Error: "rate limited"})
			continue
		}

		msg, err := messenger.NewMessage(b.id, in.Message.Target, in.Message.Action, nil)
		if err != nil {
			b.reply(ctx, messenger.Frame{Type: messenger.FrameError, ReplyTo: in.Message.ID, Error: err.Error()})
			continue
		}
		if msg.Target == "" {
			msg.Target = messenger.ControllerID
		}
		if in.Message.ID != "" {
			msg.ID = in.Message.ID
		}
		msg.Payload = in.Message.Payload

		reply, outcome := b.bus.Request(ctx, msg)
		f := messenger.Frame{Type: messenger.FrameReply, ReplyTo: msg.ID, Outcome: outcome}
		if outcome.Delivered() {
			f.Reply = &reply
		}
		b.reply(ctx, f)
	}
}

func (b *bridge) reply(ctx context.Context, f messenger.Frame) {
	select {
	case b.out <- f:
	case <-ctx.Done():
	}
}
