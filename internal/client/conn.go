// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/ManuGH/examcap/internal/coordinator"
	"github.com/ManuGH/examcap/internal/messenger"
	"github.com/gorilla/websocket"
)

// ErrSessionRefused is returned by Record when the controller declines to
// start a session.
var ErrSessionRefused = errors.New("recording not started")

// Conn is a WebSocket attachment of a registered context.
type Conn struct {
	ID messenger.ContextID
	ws *websocket.Conn

	writeMu sync.Mutex
}

// Connect attaches to the mailbox of id.
func (c *Client) Connect(ctx context.Context, id messenger.ContextID) (*Conn, error) {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/api/v1/contexts/" + url.PathEscape(string(id)) + "/ws"

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultDialTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect context %s: %w", id, err)
	}
	return &Conn{ID: id, ws: ws}, nil
}

// Send writes a message frame and returns its ID for reply correlation.
func (cn *Conn) Send(action messenger.Action, payload any) (string, error) {
	msg, err := messenger.NewMessage(cn.ID, messenger.ControllerID, action, payload)
	if err != nil {
		return "", err
	}
	cn.writeMu.Lock()
	defer cn.writeMu.Unlock()
	if err := cn.ws.WriteJSON(messenger.Frame{Type: messenger.FrameMessage, Message: &msg}); err != nil {
		return "", fmt.Errorf("send %s: %w", action, err)
	}
	return msg.ID, nil
}

// Next blocks for the next frame.
func (cn *Conn) Next() (messenger.Frame, error) {
	var f messenger.Frame
	if err := cn.ws.ReadJSON(&f); err != nil {
		return messenger.Frame{}, err
	}
	return f, nil
}

// Close ends the connection; the daemon unregisters the context.
func (cn *Conn) Close() error {
	cn.writeMu.Lock()
	_ = cn.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	cn.writeMu.Unlock()
	return cn.ws.Close()
}

// Event is a controller notification observed during Record.
type Event struct {
	Action messenger.Action
	Reply  *messenger.Reply
}

// Record starts a session as an observer context and reports every
// controller notification to onEvent until the session ends or ctx is
// done. The start acknowledgement is reported first.
func (c *Client) Record(ctx context.Context, onEvent func(Event)) error {
	id, err := c.Register(ctx, messenger.KindObserver)
	if err != nil {
		return err
	}
	cn, err := c.Connect(ctx, id)
	if err != nil {
		_ = c.Unregister(context.WithoutCancel(ctx), id)
		return err
	}
	defer func() { _ = cn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = cn.ws.Close() })
	defer stop()

	startID, err := cn.Send(messenger.ActionStartRecording, nil)
	if err != nil {
		return err
	}
	for {
		f, err := cn.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		switch f.Type {
		case messenger.FrameReply:
			if f.ReplyTo != startID {
				continue
			}
			if !f.Outcome.Delivered() || f.Reply == nil {
				return fmt.Errorf("%w: %s", ErrSessionRefused, f.Outcome)
			}
			onEvent(Event{Action: messenger.ActionStartRecording, Reply: f.Reply})
			if !f.Reply.Success {
				return fmt.Errorf("%w: %s", ErrSessionRefused, f.Reply.Message)
			}
			if f.Reply.Message == coordinator.ReplyAlreadyActive {
				// Another context owns the session; only its origin is told when it ends.
				return nil
			}
		case messenger.FrameError:
			if f.ReplyTo == startID {
				return fmt.Errorf("%w: %s", ErrSessionRefused, f.Error)
			}
		case messenger.FrameMessage:
			if f.Message == nil {
				continue
			}
			onEvent(Event{Action: f.Message.Action})
			if f.Message.Action == messenger.ActionRecordingStoppedCallback {
				return nil
			}
		}
	}
}
