package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcdev12/gamefloor/go/internal/floorerr"
)

const maxErrorBody = 512

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
}

func (c *BaseClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetHTTPClient replaces the underlying transport client.
func (c *BaseClient) SetHTTPClient(hc *http.Client) {
	c.client = hc
}

// MakeRequest sends body as JSON (when non-nil) and returns the raw response
// body. Failures come back classified: 400/422 as validation errors, 409 as a
// state conflict, everything else as a remote error.
func (c *BaseClient) MakeRequest(ctx context.Context, op, method, endpoint string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &floorerr.RemoteError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &floorerr.RemoteError{Operation: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classify(op, resp.StatusCode, responseBody)
	}

	return responseBody, nil
}

// Do performs a request and decodes the JSON response into out (if non-nil).
func (c *BaseClient) Do(ctx context.Context, op, method, endpoint string, body, out any) error {
	raw, err := c.MakeRequest(ctx, op, method, endpoint, body)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &floorerr.RemoteError{
			Operation: op,
			Err:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	return nil
}

func classify(op string, status int, body []byte) error {
	msg := serverMessage(body)
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &floorerr.ValidationError{Reason: msg}
	case http.StatusConflict:
		return floorerr.Conflict("%s: %s", op, msg)
	default:
		return &floorerr.RemoteError{Operation: op, Status: status, Body: msg}
	}
}

// serverMessage pulls a human message out of an error body, falling back to
// the truncated raw text.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}
