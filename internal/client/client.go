// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package client talks to the daemon's control API as an out-of-process
// context.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/examcap/internal/api"
	"github.com/ManuGH/examcap/internal/messenger"
)

const (
	defaultClientTimeout         = 10 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status int
	Code   string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("daemon returned %d %s: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("daemon returned %d %s", e.Status, e.Code)
}

// Client is a control API client.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the daemon at baseURL, e.g.
// "http://127.0.0.1:8787".
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse daemon url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("daemon url must be http or https: %q", baseURL)
	}
	return &Client{base: u, http: newHTTPClient(timeout)}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       30 * time.Second,
			ResponseHeaderTimeout: min(timeout, defaultResponseHeaderTimeout),
		},
	}
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

// do sends a JSON request and decodes a JSON response into out. Outcome
// statuses of the message endpoint are decoded as well so callers can
// inspect them.
func (c *Client) do(ctx context.Context, method, path string, in, out any, okStatus ...int) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 && !containsStatus(okStatus, resp.StatusCode) {
		apiErr := &APIError{Status: resp.StatusCode}
		var e api.ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e) == nil {
			apiErr.Code, apiErr.Detail = e.Error, e.Detail
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func containsStatus(list []int, status int) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

// Register creates an out-of-process context of the given kind.
func (c *Client) Register(ctx context.Context, kind messenger.Kind) (messenger.ContextID, error) {
	var out api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/contexts", api.RegisterRequest{Kind: kind}, &out); err != nil {
		return "", err
	}
	if out.ProtocolVersion != messenger.ProtocolVersion {
		_ = c.Unregister(context.WithoutCancel(ctx), out.ID)
		return "", fmt.Errorf("daemon speaks protocol v%d, client v%d", out.ProtocolVersion, messenger.ProtocolVersion)
	}
	return out.ID, nil
}

// Unregister removes a context. Unknown contexts are not an error.
func (c *Client) Unregister(ctx context.Context, id messenger.ContextID) error {
	err := c.do(ctx, http.MethodDelete, "/api/v1/contexts/"+url.PathEscape(string(id)), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// Send delivers a message from sender to the controller and waits for its
// acknowledgement. Non-delivery outcomes are returned in the response, not
// as errors.
func (c *Client) Send(ctx context.Context, sender messenger.ContextID, action messenger.Action, payload any) (api.MessageResponse, error) {
	req := api.MessageRequest{Sender: sender, Action: action}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return api.MessageResponse{}, fmt.Errorf("encode payload: %w", err)
		}
		req.Payload = raw
	}
	var out api.MessageResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/messages", req, &out,
		http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusServiceUnavailable, http.StatusGatewayTimeout)
	if err != nil {
		return api.MessageResponse{}, err
	}
	return out, nil
}

// Session returns the daemon's session snapshot.
func (c *Client) Session(ctx context.Context) (api.SessionResponse, error) {
	var out api.SessionResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/session", nil, &out)
	return out, err
}

// FPS returns the configured capture frame rate.
func (c *Client) FPS(ctx context.Context) (int, error) {
	var out api.SettingsBody
	if err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &out); err != nil {
		return 0, err
	}
	return out.FPS, nil
}

// SetFPS stores the capture frame rate.
func (c *Client) SetFPS(ctx context.Context, fps int) error {
	return c.do(ctx, http.MethodPut, "/api/v1/settings", api.SettingsBody{FPS: fps}, nil)
}
