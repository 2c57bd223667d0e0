// Package wgapi is a typed client for the WireGuard gateway REST API.
package wgapi

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

	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/metrics"
	"github.com/pysugar/wg-provisioner/internal/util"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds every gateway call.
const DefaultTimeout = 10 * time.Second

const maxResponseSize = 8 << 20

// Client talks to any number of gateways; the target is chosen per call.
// It never retries: retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	limiter    *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outgoing calls per second across all gateways.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a gateway client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type call struct {
	method string
	path   string
	query  url.Values
	body   any
	accept string
}

// do executes one call and returns the raw response body of a 2xx answer.
func (c *Client) do(ctx context.Context, ep Endpoint, cl call) ([]byte, error) {
	fullURL := strings.TrimRight(ep.BaseURL, "/") + cl.path
	if len(cl.query) > 0 {
		fullURL += "?" + cl.query.Encode()
	}
	entry := logging.FromContext(ctx).WithFields(log.Fields{
		"method": cl.method,
		"url":    fullURL,
		"login":  ep.Login,
	})
	fail := func(status int, body []byte, err error) error {
		return &RemoteAPIError{
			Method: cl.method,
			URL:    fullURL,
			Status: status,
			Body:   util.TruncateBody(body),
			Err:    err,
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			entry.WithError(err).Warn("gateway call not sent")
			return nil, fail(0, nil, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fail(0, nil, fmt.Errorf("encode request: %w", err))
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, fullURL, reqBody)
	if err != nil {
		return nil, fail(0, nil, err)
	}
	req.SetBasicAuth(ep.Login, ep.Secret)
	accept := cl.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveGatewayRequest(cl.method, "unreachable", elapsed)
		entry.WithError(err).WithField("duration", elapsed).Error("gateway unreachable")
		return nil, fail(0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		metrics.ObserveGatewayRequest(cl.method, "unreachable", elapsed)
		entry.WithError(err).Error("gateway response truncated")
		return nil, fail(0, nil, fmt.Errorf("read response: %w", err))
	}
	entry = entry.WithFields(log.Fields{"status": resp.StatusCode, "duration": elapsed})
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveGatewayRequest(cl.method, "error", elapsed)
		entry.WithField("body", util.TruncateBody(body)).Warn("gateway call failed")
		return nil, fail(resp.StatusCode, body, nil)
	}
	metrics.ObserveGatewayRequest(cl.method, "ok", elapsed)
	entry.Debug("gateway call ok")
	return body, nil
}

// doJSON executes a call and decodes a JSON answer into out when out is non-nil.
func (c *Client) doJSON(ctx context.Context, ep Endpoint, cl call, out any) error {
	body, err := c.do(ctx, ep, cl)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		fullURL := strings.TrimRight(ep.BaseURL, "/") + cl.path
		return &RemoteAPIError{
			Method: cl.method,
			URL:    fullURL,
			Status: http.StatusBadGateway,
			Body:   util.TruncateBody(body),
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

func byID(prefix, id string) string {
	return prefix + url.PathEscape(id)
}
