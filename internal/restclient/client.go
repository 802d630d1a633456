// Package restclient provides clients for the cloud ASR, OCR, and
// text-completion providers. Only the request/response contracts live here;
// retry and degradation policy belong to the callers.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/scribeflow/platform/internal/errors"
	"github.com/scribeflow/platform/internal/resilience"
)

// Config holds provider endpoints and the shared credential.
type Config struct {
	ASRURL string
	OCRURL string
	LLMURL string
	APIKey string
	// Timeout bounds a single HTTP exchange.
	Timeout time.Duration
}

// Client wraps all provider endpoints. Each endpoint gets its own circuit
// breaker so one failing provider does not suspend the others.
type Client struct {
	httpc *http.Client
	cfg   Config

	asrBreaker *resilience.Breaker
	ocrBreaker *resilience.Breaker
	llmBreaker *resilience.Breaker
}

// New creates a client for the configured providers.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		httpc:      &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		asrBreaker: resilience.NewBreaker("asr", resilience.DefaultBreakerConfig()),
		ocrBreaker: resilience.NewBreaker("ocr", resilience.DefaultBreakerConfig()),
		llmBreaker: resilience.NewBreaker("llm", resilience.DefaultBreakerConfig()),
	}
}

// postJSON issues one JSON POST under the endpoint's breaker and decodes
// the response into out. Failures map onto the shared taxonomy: dial/read
// errors are transport, non-2xx statuses map by code, undecodable bodies
// are format errors.
func (c *Client) postJSON(ctx context.Context, url string, breaker *resilience.Breaker, in, out any) error {
	_, err := resilience.Guard(breaker, func() (struct{}, error) {
		return struct{}{}, c.doPost(ctx, url, in, out)
	})
	return err
}

func (c *Client) doPost(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.CodeFormat, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.CodeTransport, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeTransport, "provider unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return errors.Wrap(err, errors.CodeTransport, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.FromHTTPStatus(resp.StatusCode, truncateBody(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, errors.CodeFormat, "decode response")
	}
	return nil
}

func truncateBody(body []byte) string {
	if len(body) > ErrorBodyPreview {
		body = body[:ErrorBodyPreview]
	}
	return string(body)
}
