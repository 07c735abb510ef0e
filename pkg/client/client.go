// Package client provides the HTTP client of the StaticForge file service,
// with retry, online tracking and an explicit auth session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/staticforge/console/internal/logging"
	"github.com/staticforge/console/pkg/protocol"
	"github.com/staticforge/console/pkg/retry"
)

// Client talks to a file service over HTTP.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	session     *Session

	mu       sync.RWMutex
	online   bool
	lastPing time.Time
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	Session     *Session
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	if cfg.Session == nil {
		cfg.Session = NewSession("")
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		session:     cfg.Session,
		online:      true,
	}
}

// Session returns the auth session the client sends with each request.
func (c *Client) Session() *Session {
	return c.session
}

// IsOnline returns true if the last request reached the server.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("file service is back online", zap.String("url", c.baseURL))
		} else {
			logging.Error("file service is offline", zap.String("url", c.baseURL))
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	c.setOnline(true)
	return nil
}

// Project returns the file operations scoped to one project.
func (c *Client) Project(id string) *ProjectFiles {
	return &ProjectFiles{c: c, id: id}
}

// call is one envelope request. The body is buffered so a retried attempt
// can send it again.
type call struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
}

func jsonCall(method, path string, v any) (call, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return call{}, fmt.Errorf("encode request: %w", err)
	}
	return call{method: method, path: path, body: body, contentType: "application/json"}, nil
}

type reply struct {
	env       protocol.Response
	requestID string
}

// do sends the request and decodes the envelope. On success the envelope
// data, if any, is decoded into out.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	res, err := retry.DoWithResult(ctx, c.retryConfig, func() (*reply, error) {
		var body io.Reader
		if cl.body != nil {
			body = bytes.NewReader(cl.body)
		}
		req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
		if err != nil {
			return nil, err
		}
		if cl.contentType != "" {
			req.Header.Set("Content-Type", cl.contentType)
		}
		req.Header.Set("Accept", "application/json")
		c.session.apply(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return nil, retry.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode >= 500 {
				c.setOnline(false)
				return nil, retry.Retryable(fmt.Errorf("server error: %d", resp.StatusCode))
			}
			c.setOnline(true)
			return nil, fmt.Errorf("server returned %d", resp.StatusCode)
		}

		c.setOnline(true)

		rep := &reply{requestID: resp.Header.Get(logging.RequestIDHeader)}
		if err := json.NewDecoder(resp.Body).Decode(&rep.env); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return rep, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}

	env := res.env
	if !env.OK() {
		apiErr := &APIError{Code: env.Code, Message: env.Message, RequestID: res.requestID}
		switch env.Code {
		case protocol.CodeUnauthorized:
			logging.Warn("file service rejected credentials", zap.String("path", cl.path))
			c.session.unauthorized()
		case protocol.CodeInternal:
			logging.Warn("file service internal error",
				zap.String("path", cl.path), zap.String("request_id", res.requestID))
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// APIError is a failure reported inside the response envelope.
type APIError struct {
	Code    int
	Message string
	// RequestID is the server's ID for the failed request, when it sent one.
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("file service error %d", e.Code)
	}
	return e.Message
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsUnauthorized reports whether the service rejected the session's token.
func IsUnauthorized(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.Code == protocol.CodeUnauthorized
}
