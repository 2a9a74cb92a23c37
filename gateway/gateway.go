// Package gateway performs the single blocking HTTP exchange against the
// remote manifest service. One attempt, no retries; response status codes
// are classified into the typed errors in errors.go.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"duck-access/secret"
)

// DefaultTimeout bounds connect+write+read for one manifest request.
const DefaultTimeout = 30 * time.Second

// maxErrorBodyBytes caps how much of an error response body is carried
// into a ProtocolError.
const maxErrorBodyBytes = 200

// maxManifestBodyBytes caps a successful response body; manifests are
// small and an unbounded read would let a misbehaving server pin memory.
const maxManifestBodyBytes = 4 << 20

// Client calls the remote manifest service.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides the hard request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit applies a client-side token bucket to outbound fetches.
// Zero rps leaves fetches unlimited.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithLogger sets the logger for request events.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient swaps the underlying HTTP client. Tests use this to
// inject short timeouts.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a gateway client with the default timeout.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// manifestRequest is the POST /manifest body.
type manifestRequest struct {
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// errorResponse is the optional JSON error shape returned on 403/404.
type errorResponse struct {
	Message string `json:"message"`
}

// FetchManifest requests the manifest for (schema, table) and returns the
// raw response body. Non-2xx responses and transport failures map onto the
// package error types; the caller owns parsing the body.
func (c *Client) FetchManifest(ctx context.Context, auth *secret.AuthContext, schema, table string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	payload, err := json.Marshal(manifestRequest{Table: table, Schema: schema})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.Endpoint()+"/manifest", bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", auth.APIKey())
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("manifest request failed",
			"schema", schema, "table", table, "request_id", requestID, "error", err)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("manifest request",
		"schema", schema, "table", table,
		"status", resp.StatusCode, "request_id", requestID,
		"duration", time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBodyBytes))
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		return body, nil
	}

	return nil, classifyStatus(resp)
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &AuthenticationError{}
	case http.StatusForbidden:
		return &AuthorizationError{Message: serverMessage(body, "access denied")}
	case http.StatusNotFound:
		return &NotFoundError{Message: serverMessage(body, "table not found on server")}
	default:
		return &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// serverMessage extracts the "message" field from an error body, falling
// back when the body is not JSON or carries no message.
func serverMessage(body []byte, fallback string) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Message != "" {
		return er.Message
	}
	return fallback
}
