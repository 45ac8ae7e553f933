// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSink posts each event as JSON to a chat front end. The front end
// renders messages and may answer a cycle_opened post with
// {"ref": "..."} to identify the announcement it created.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

type webhookEnvelope struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Payload any    `json:"payload"`
}

func (s WebhookSink) post(ctx context.Context, kind, eventID string, payload any) ([]byte, error) {
	body, err := json.Marshal(webhookEnvelope{Type: kind, EventID: eventID, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: %w", kind, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook %s returned %s", kind, resp.Status)
	}
	return respBody, nil
}

func (s WebhookSink) CycleOpened(ctx context.Context, ev CycleOpened) (string, error) {
	body, err := s.post(ctx, "cycle_opened", ev.EventID, ev)
	if err != nil {
		return "", err
	}
	var reply struct {
		Ref string `json:"ref"`
	}
	// An empty or non-JSON reply just means no reference.
	_ = json.Unmarshal(body, &reply)
	return reply.Ref, nil
}

func (s WebhookSink) RunoffStarted(ctx context.Context, ev RunoffStarted) error {
	_, err := s.post(ctx, "runoff_started", ev.EventID, ev)
	return err
}

func (s WebhookSink) Results(ctx context.Context, ev Results) error {
	_, err := s.post(ctx, "results", ev.EventID, ev)
	return err
}

func (s WebhookSink) Reminder(ctx context.Context, ev Reminder) error {
	_, err := s.post(ctx, "reminder", ev.EventID, ev)
	return err
}
