package khata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request describes one backend call. Path is relative to Config.BaseURL; Body, when set,
// is sent as JSON.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Header http.Header
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// APIResponse is the envelope every Boi Khata endpoint answers with.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Do sends req with the current session token. On 401 it refreshes the session once and
// retries once; see the package documentation for the full contract.
//
// Errors are *RequestError. For status errors the response is returned alongside the error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if c.closed.Load() {
		return nil, &RequestError{Kind: ErrClientClosed, Method: req.method(), Path: req.Path}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	c.metrics.Inc(MetricRequest)
	resp, err := c.do(ctx, req)
	c.metrics.Observe(MetricRequestLatency, time.Since(start))
	if err != nil {
		c.metrics.Inc(MetricRequestFailure)
	}
	return resp, err
}

// DoJSON calls Do and decodes a successful response body into out. A nil out discards the
// body.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return &RequestError{
			Kind:   ErrInvalidResponse,
			Status: resp.StatusCode,
			Method: req.method(),
			Path:   req.Path,
			Err:    err,
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	if err := c.store.AwaitRehydration(ctx); err != nil {
		return nil, networkError(req, err)
	}

	// Read after the gate so a rehydrated token is never missed.
	token := c.store.Session().Token
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.classify(ctx, req, resp)
	}

	fresh, err := c.refresh(ctx, req, token)
	if err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricRetry)
	resp, err = c.send(ctx, req, fresh)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.endSession(ctx, NotifySessionExpired, req.Path, "retry rejected")
		return resp, &RequestError{
			Kind:    ErrSessionExpired,
			Status:  resp.StatusCode,
			Method:  req.method(),
			Path:    req.Path,
			Message: backendMessage(resp.Body),
			Err:     ErrUnauthenticated,
		}
	}
	return c.classify(ctx, req, resp)
}

// classify maps a non-401 response onto the error taxonomy.
func (c *Client) classify(ctx context.Context, req Request, resp *Response) (*Response, error) {
	if isSuccess(resp.StatusCode) {
		return resp, nil
	}

	re := &RequestError{
		Status:  resp.StatusCode,
		Method:  req.method(),
		Path:    req.Path,
		Message: backendMessage(resp.Body),
	}
	switch resp.StatusCode {
	case http.StatusForbidden:
		re.Kind = ErrForbidden
		c.metrics.Inc(MetricForbidden)
		c.Notify(ctx, newNotification(NotifyForbidden, req.Path))
	case http.StatusNotFound:
		re.Kind = ErrNotFound
		c.metrics.Inc(MetricNotFound)
		c.Notify(ctx, newNotification(NotifyNotFound, req.Path))
	default:
		re.Kind = ErrUnexpectedStatus
	}
	return resp, re
}

// send performs exactly one HTTP exchange. An empty token sends no Authorization header.
func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, networkError(req, err)
		}
	}

	httpReq, requestID, err := c.newHTTPRequest(ctx, req, token)
	if err != nil {
		return nil, &RequestError{Kind: ErrInvalidRequest, Method: req.method(), Path: req.Path, Err: err}
	}

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.Inc(MetricNetworkFailure)
		c.log.Warn().
			Err(err).
			Str("method", httpReq.Method).
			Str("path", req.Path).
			Str("request_id", requestID).
			Msg("request failed")
		return nil, networkError(req, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, c.cfg.Transport.MaxResponseBytes))
	if err != nil {
		c.metrics.Inc(MetricNetworkFailure)
		return nil, networkError(req, fmt.Errorf("read body: %w", err))
	}

	c.log.Debug().
		Str("method", httpReq.Method).
		Str("path", req.Path).
		Str("request_id", requestID).
		Int("status", httpResp.StatusCode).
		Bool("authenticated", token != "").
		Dur("elapsed", time.Since(start)).
		Msg("request completed")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, string, error) {
	target, err := c.endpoint(req.Path, req.Query)
	if err != nil {
		return nil, "", err
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), target, body)
	if err != nil {
		return nil, "", err
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Transport.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.Transport.UserAgent)
	}

	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	if token != "" {
		httpReq.Header.Set("Authorization", c.authorization(token))
	}

	return httpReq, requestID, nil
}

func (c *Client) authorization(token string) string {
	if c.cfg.Auth.TokenScheme == "" {
		return token
	}
	return c.cfg.Auth.TokenScheme + " " + token
}

// endpoint joins p onto the base URL. Absolute references are rejected so a token can never
// be sent to another host.
func (c *Client) endpoint(p string, query url.Values) (string, error) {
	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", errors.New("path must be relative to the base URL")
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""

	q := ref.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return u.String(), nil
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func networkError(req Request, err error) error {
	return &RequestError{Kind: ErrNetwork, Method: req.method(), Path: req.Path, Err: err}
}

// backendMessage extracts the envelope message from an error body, if any.
func backendMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}
