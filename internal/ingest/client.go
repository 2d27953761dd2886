package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rescuelink/internal/delivery"
	"rescuelink/internal/models"
)

// Client talks to the upstream authority ingest API. Every call carries a
// timeout; errors come back classified against the delivery taxonomy so the
// worker can decide retry vs abandon without inspecting transport details.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

var _ delivery.IngestClient = (*Client)(nil)

type submitPayload struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	Location      *models.Location       `json:"location,omitempty"`
	Urgency       models.Urgency         `json:"urgency"`
	EmergencyType string                 `json:"emergency_type"`
	Profile       models.ProfileSnapshot `json:"profile"`
}

type submitResult struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Submit posts the event. The ingest API is idempotent on the event id, so
// resubmitting after a dropped response is safe. A nil return means the
// event was accepted.
func (c *Client) Submit(ctx context.Context, event *models.SOSEvent) error {
	payload := submitPayload{
		ID:            event.ID,
		Timestamp:     event.CreatedAt,
		Location:      event.Location,
		Urgency:       event.Urgency,
		EmergencyType: event.EmergencyType,
		Profile:       event.Profile,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal submit payload: %v", delivery.ErrServerRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sos", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result submitResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			// The server may have persisted before the response was lost;
			// treat as transient so the retry can dedup upstream.
			return fmt.Errorf("%w: decode submit response: %v", delivery.ErrTransientNetwork, err)
		}
		if !result.Accepted {
			return fmt.Errorf("%w: event %s not accepted", delivery.ErrServerRejected, event.ID)
		}
		return nil

	case resp.StatusCode == http.StatusConflict:
		// Duplicate submit of an already-ingested event.
		return nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", delivery.ErrServerRejected, resp.StatusCode, bytes.TrimSpace(detail))

	default:
		return fmt.Errorf("%w: status %d", delivery.ErrTransientNetwork, resp.StatusCode)
	}
}

// ActiveAlerts fetches the ingest side's view of active events; presence
// with status responding or resolved counts as an acknowledgment.
func (c *Client) ActiveAlerts(ctx context.Context) ([]delivery.AckStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/sos/active", nil)
	if err != nil {
		return nil, fmt.Errorf("build active alerts request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: active alerts status %d", delivery.ErrTransientNetwork, resp.StatusCode)
	}

	var payload struct {
		Alerts []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode active alerts: %w", err)
	}

	statuses := make([]delivery.AckStatus, 0, len(payload.Alerts))
	for _, alert := range payload.Alerts {
		statuses = append(statuses, delivery.AckStatus{
			ID:           alert.ID,
			Acknowledged: alert.Status == "responding" || alert.Status == "resolved",
		})
	}
	return statuses, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", delivery.ErrTimeout, err)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return fmt.Errorf("%w: %v", delivery.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", delivery.ErrTransientNetwork, err)
}
