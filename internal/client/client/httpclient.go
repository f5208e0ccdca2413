package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gatherhall/doorsync/internal/api"
	"github.com/gatherhall/doorsync/internal/common"
)

// HTTPClient implements Client over the server's JSON API.
type HTTPClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) SubmitBatch(ctx context.Context, eventID string, req *api.BatchRequest) (*api.BatchResponse, error) {
	resp := &api.BatchResponse{}
	path := fmt.Sprintf("/api/v1/events/%s/sync", url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodPost, path, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) GetRoster(ctx context.Context, eventID string) (*api.RosterResponse, error) {
	resp := &api.RosterResponse{}
	path := fmt.Sprintf("/api/v1/events/%s/attendees", url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodGet, path, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *HTTPClient) ReportPending(ctx context.Context, deviceID string, pending int) error {
	req := &api.HeartbeatRequest{DeviceID: deviceID, PendingCount: pending}
	return c.do(ctx, http.MethodPost, "/api/v1/devices/heartbeat", req, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/ping", nil, nil)
}

// do performs one JSON request/response exchange. Transport failures and
// 5xx responses come back as common.ErrRetryable; 401/403 as
// common.ErrUnauthorized; other non-2xx as plain errors carrying the
// server's message.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(common.StaffTokenHeaderName, c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, common.ErrRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, common.ErrUnauthorized)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s %s: server status %d: %w", method, path, resp.StatusCode, common.ErrRetryable)
	default:
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
}
