// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package client

import (
	"context"
	"fmt"

	"github.com/ManuGH/examcap/internal/messenger"
)

// StopResult is the controller's answer to a stop request.
type StopResult struct {
	Accepted bool
	Reason   string
}

// oneShot registers a short-lived context, sends a single message and
// unregisters again.
func (c *Client) oneShot(ctx context.Context, kind messenger.Kind, action messenger.Action, payload any) (messenger.Reply, error) {
	id, err := c.Register(ctx, kind)
	if err != nil {
		return messenger.Reply{}, err
	}
	defer func() { _ = c.Unregister(context.WithoutCancel(ctx), id) }()

	resp, err := c.Send(ctx, id, action, payload)
	if err != nil {
		return messenger.Reply{}, err
	}
	if !resp.Outcome.Delivered() || resp.Reply == nil {
		return messenger.Reply{}, fmt.Errorf("%s not delivered: %s", action, resp.Outcome)
	}
	return *resp.Reply, nil
}

// StopRecording asks the controller to end the running session.
func (c *Client) StopRecording(ctx context.Context) (StopResult, error) {
	reply, err := c.oneShot(ctx, messenger.KindPopup, messenger.ActionStopRecording, nil)
	if err != nil {
		return StopResult{}, err
	}
	return StopResult{Accepted: reply.Success, Reason: reply.Message}, nil
}

// StoreTitle reports a page title as an observer.
func (c *Client) StoreTitle(ctx context.Context, title string) error {
	reply, err := c.oneShot(ctx, messenger.KindObserver, messenger.ActionStoreTitle, messenger.StoreTitlePayload{Title: title})
	if err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("title rejected: %s", reply.Message)
	}
	return nil
}
