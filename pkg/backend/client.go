package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/pkg/errors"
)

const (
	healthPath      = "/health"
	updatePath      = "/api/locations/update"
	batchUpdatePath = "/api/locations/batch-update"

	// maxErrorBody caps how much of an error response body is kept.
	maxErrorBody = 300
)

var (
	// ErrRejected is returned when the backend answers 200 but reports success=false.
	ErrRejected = errors.New("backend rejected update")
	// ErrUnexpectedStatus is returned for any non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Client talks to the location backend over HTTP.
type Client struct {
	client    *http.Client
	serverURL string
	userAgent string
}

// NewClient returns a Client for serverURL with the given request timeout.
func NewClient(serverURL string, timeout time.Duration, userAgent string) *Client {
	return &Client{
		client:    &http.Client{Timeout: timeout},
		serverURL: strings.TrimRight(serverURL, "/"),
		userAgent: userAgent,
	}
}

// ServerURL returns the normalised backend base URL.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Health probes the backend health endpoint.
func (c *Client) Health(ctx context.Context) (models.HealthStatus, error) {
	var status models.HealthStatus
	if err := c.do(ctx, http.MethodGet, healthPath, nil, &status); err != nil {
		return nil, errors.Wrap(err, "health check failed")
	}
	return status, nil
}

// SendUpdate posts a single reading. It returns true when the backend stored
// a new point and false when it already had it.
func (c *Client) SendUpdate(ctx context.Context, update models.LocationUpdate) (bool, error) {
	var result models.UpdateResult
	if err := c.do(ctx, http.MethodPost, updatePath, update, &result); err != nil {
		return false, errors.Wrapf(err, "failed to send location update for %s", update.DeviceID)
	}
	if !result.Success {
		return false, errors.Wrapf(ErrRejected, "device %s: %s", update.DeviceID, result.Message)
	}
	return result.IsNew, nil
}

// SendBatch posts several readings in one request.
func (c *Client) SendBatch(ctx context.Context, updates []models.LocationUpdate) (models.BatchResult, error) {
	var result models.BatchResult
	if err := c.do(ctx, http.MethodPost, batchUpdatePath, updates, &result); err != nil {
		return result, errors.Wrap(err, "failed to send batch update")
	}
	if !result.Success {
		return result, errors.Wrap(ErrRejected, "batch update")
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create http request object")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.Wrap(ErrUnexpectedStatus, fmt.Sprintf("%d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
