package briefing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxErrorBodySize caps how much of an error response body is read so a
// misbehaving backend cannot cause a memory spike.
const maxErrorBodySize = 4096

// PromptRequest is the payload opening a new agent turn.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ClientConfig configures the agent API client.
type ClientConfig struct {
	// Endpoint is the agent API URL. Required.
	Endpoint string
	// Token is the bearer token attached to every request. Required.
	Token string
	// HTTPClient overrides the transport. Defaults to http.DefaultClient;
	// any timeout policy belongs to the transport, not the protocol.
	HTTPClient *http.Client
	// Logger receives failed-request diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Client issues synchronous calls to the briefing agent backend. One request
// at a time, one attempt per call: repeating a failed call is a user-initiated
// action, never an automatic retry.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewClient validates the configuration and returns a ready client.
// A missing endpoint or token fails closed with ErrNotConfigured.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Token == "" {
		return nil, ErrNotConfigured
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		client:   httpClient,
		logger:   logger,
		tracer:   otel.Tracer("briefgate/briefing"),
	}, nil
}

// Send posts the payload to the agent endpoint and returns the raw JSON body.
// The payload is either a PromptRequest for a new turn or an annotated
// *AgentResponse to resume a paused run. Callers unwrap the single-element
// envelope with DecodeEnvelope.
func (c *Client) Send(ctx context.Context, payload any) (json.RawMessage, error) {
	ctx, span := c.tracer.Start(ctx, "briefing.send",
		trace.WithAttributes(attribute.String("agent.endpoint", c.endpoint)))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("briefing: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("briefing: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logFailure(body, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &APIError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		apiErr := &APIError{Status: resp.StatusCode, Message: string(detail)}
		c.logFailure(body, apiErr)
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, apiErr
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logFailure(body, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &APIError{Message: fmt.Sprintf("reading response: %v", err), Err: err}
	}

	if !json.Valid(raw) {
		apiErr := &APIError{Status: resp.StatusCode, Message: "malformed JSON body"}
		c.logFailure(body, apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, apiErr
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return raw, nil
}

// logFailure records the attempted payload alongside the error. The logger is
// expected to be wrapped in a redacting handler, so the payload may be logged
// verbatim without leaking credentials.
func (c *Client) logFailure(payload []byte, err error) {
	c.logger.Info("agent request failed",
		"payload", string(payload),
		"error", err,
	)
}
