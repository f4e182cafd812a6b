package timeservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/sadopc/attendr/internal/session"
)

const defaultTimeout = 10 * time.Second

// Client talks to the time service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a client using hc as-is. Pass a client that already
// adds credentials, or use NewAuthenticatedClient.
func NewClient(baseURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		log:        log,
	}
}

// NewAuthenticatedClient creates a client that sends the session's bearer
// token, refreshing it through ts when it expires.
func NewAuthenticatedClient(ctx context.Context, baseURL string, ts oauth2.TokenSource, log *zap.Logger) *Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: defaultTimeout})
	return NewClient(baseURL, oauth2.NewClient(ctx, ts), log)
}

// Status fetches the authoritative attendance status for workDate
// (YYYY-MM-DD).
func (c *Client) Status(ctx context.Context, workDate string) (*Status, error) {
	endpoint := fmt.Sprintf("%s/api/attendance/status?date=%s", c.baseURL, url.QueryEscape(workDate))
	var st Status
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &st); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	return &st, nil
}

// Act requests a mutation. A 2xx response whose body carries an error
// field is still a failure.
func (c *Client) Act(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	var res ActionResult
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/attendance/action", req, &res); err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, &APIError{Status: http.StatusOK, Message: res.Error}
	}
	return &res, nil
}

// Me returns the account that owns the bearer token.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	var u session.User
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/me", nil, &u); err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return &u, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("time service request failed: %w", err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	c.log.Debug("time service call",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding time service response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
		return &APIError{Status: status, Message: payload.Error}
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}
