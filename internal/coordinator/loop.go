// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package coordinator

import (
	"context"

	xglog "github.com/ManuGH/examcap/internal/log"
	"github.com/ManuGH/examcap/internal/messenger"
)

// Run processes controller messages and window closures one at a time
// until ctx is cancelled. A session still running at that point has its
// window closed.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().Str(xglog.FieldEvent, "coordinator.started").Msg("coordinator loop started")
	defer func() {
		if s := c.Snapshot(); s.Active() {
			c.windows.Close(s.WindowHandle)
		}
		c.bus.Unregister(messenger.ControllerID)
		c.logger.Info().Str(xglog.FieldEvent, "coordinator.stopped").Msg("coordinator loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-c.mailbox.C():
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		case handle := <-c.closed:
			c.OnWindowClosed(ctx, handle)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, d *messenger.Delivery) {
	msg := d.Message
	switch msg.Action {
	case messenger.ActionStartRecording:
		res, err := c.RequestStart(ctx, msg.Sender)
		switch {
		case err != nil:
			d.Ack(messenger.Reply{Success: false, Message: err.Error()})
		case res.Refocused:
			d.Ack(messenger.Reply{Success: true, Message: ReplyAlreadyActive})
		default:
			d.Ack(messenger.Reply{Success: true, Message: ReplyWindowOpened})
		}

	case messenger.ActionRecordingActuallyStarted:
		c.NotifyStarted(ctx, string(msg.Sender))
		d.Ack(messenger.Reply{Success: true})

	case messenger.ActionStopRecording:
		res := c.RequestStop(ctx, msg.Sender)
		d.Ack(messenger.Reply{Success: res.Accepted, Message: res.Reason})

	case messenger.ActionStoreTitle:
		var p messenger.StoreTitlePayload
		if err := msg.Decode(&p); err != nil {
			d.Ack(messenger.Reply{Success: false, Message: err.Error()})
			return
		}
		if err := c.StoreTitle(ctx, msg.Sender, p.Title); err != nil {
			c.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "coordinator.title_failed").
				Str(xglog.FieldSender, string(msg.Sender)).
				Msg("failed to store title")
			d.Ack(messenger.Reply{Success: false, Message: err.Error()})
			return
		}
		d.Ack(messenger.Reply{Success: true})

	default:
		c.logger.Warn().
			Str(xglog.FieldEvent, "coordinator.unexpected_action").
			Str(xglog.FieldAction, string(msg.Action)).
			Msg("action not handled by the controller")
		d.Ack(messenger.Reply{Success: false, Message: "unsupported action"})
	}
}
