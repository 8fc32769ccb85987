package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client talks to the external messaging provider API. All calls use the
// instance token in the auth header. The HTTP client carries no timeout of
// its own: a slow provider call only blocks the task that issued it, and the
// provider's own limits bound the wait.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a provider API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{},
	}
}

// InstanceInfo describes a provider-side channel instance
type InstanceInfo struct {
	InstanceID string `json:"instanceId"`
	Token      string `json:"token"`
	Status     string `json:"status"`
}

// SendResult is the provider's acknowledgement of an outbound message
type SendResult struct {
	Response  string `json:"response"`
	MessageID string `json:"messageId,omitempty"`
}

// ErrorResponse represents a provider error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateInstance provisions a new channel instance at the provider
func (c *Client) CreateInstance(ctx context.Context, name string) (*InstanceInfo, error) {
	body := map[string]string{"instanceName": name}
	var info InstanceInfo
	if err := c.do(ctx, http.MethodPost, "/instance/create", c.APIKey, body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SendText delivers a text message through the given instance
func (c *Client) SendText(ctx context.Context, token, phone, message string) (*SendResult, error) {
	body := map[string]string{"phone": phone, "message": message}
	var result SendResult
	if err := c.do(ctx, http.MethodPost, "/message/send-text", token, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Status returns the connection state of an instance
func (c *Client) Status(ctx context.Context, token, instanceID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/instance/%s/status", instanceID)
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Connect starts the pairing flow for an instance
func (c *Client) Connect(ctx context.Context, token, instanceID string) error {
	path := fmt.Sprintf("/instance/%s/connect", instanceID)
	return c.do(ctx, http.MethodPost, path, token, nil, nil)
}

// Disconnect logs the instance out without deleting it
func (c *Client) Disconnect(ctx context.Context, token, instanceID string) error {
	path := fmt.Sprintf("/instance/%s/disconnect", instanceID)
	return c.do(ctx, http.MethodPost, path, token, nil, nil)
}

// DeleteInstance destroys the instance at the provider. Callers must route
// this through the guardrail's SafeOperation wrapper.
func (c *Client) DeleteInstance(ctx context.Context, token, instanceID string) error {
	path := fmt.Sprintf("/instance/%s", instanceID)
	return c.do(ctx, http.MethodDelete, path, token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Message != "" {
			return fmt.Errorf("provider error: %s - %s", errResp.Error, errResp.Message)
		}
		return fmt.Errorf("provider error: %d %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode provider response: %w", err)
		}
	}
	return nil
}
