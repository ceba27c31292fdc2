package khata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/boikhata/khata/jwt"
)

const refreshKey = "refresh"

type tokenData struct {
	AccessToken string `json:"accessToken"`
}

// token is the access token as stored and sent; surrounding whitespace is dropped once here.
func (d tokenData) token() string {
	return strings.TrimSpace(d.AccessToken)
}

// refresh returns a token to retry with. Concurrent callers share one backend call; a caller
// whose stale token was already replaced reuses the replacement without a call.
func (c *Client) refresh(ctx context.Context, req Request, stale string) (string, error) {
	if current := c.store.Session().Token; current != "" && current != stale {
		c.metrics.Inc(MetricRefreshCoalesced)
		return current, nil
	}

	// The shared call must outlive any single caller's context.
	detached := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		// A refresh that finished between the check above and this call already replaced
		// the token.
		if current := c.store.Session().Token; current != "" && current != stale {
			return current, nil
		}
		return c.refreshSession(detached)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.Inc(MetricRefreshCoalesced)
		}
		if res.Err != nil {
			return "", rebind(res.Err, req)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", networkError(req, ctx.Err())
	}
}

// refreshSession performs the refresh call. Every failure ends the session.
func (c *Client) refreshSession(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout())
	defer cancel()

	c.metrics.Inc(MetricRefreshAttempt)
	req := Request{Method: http.MethodPost, Path: c.cfg.Auth.RefreshPath}

	resp, err := c.send(ctx, req, "")
	if err != nil {
		return "", c.refreshFailed(ctx, NotifyRefreshFailed, req, 0, "", err)
	}
	if !isSuccess(resp.StatusCode) {
		return "", c.refreshFailed(ctx, NotifySessionExpired, req, resp.StatusCode, backendMessage(resp.Body), ErrUnauthenticated)
	}

	var env APIResponse[tokenData]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return "", c.refreshFailed(ctx, NotifyRefreshFailed, req, resp.StatusCode, "", errors.Join(ErrInvalidResponse, err))
	}
	token := env.Data.token()
	if token == "" {
		return "", c.refreshFailed(ctx, NotifySessionExpired, req, resp.StatusCode, env.Message, ErrUnauthenticated)
	}

	claims, err := jwt.Decode(token)
	if err != nil {
		return "", c.refreshFailed(ctx, NotifyRefreshFailed, req, resp.StatusCode, "", err)
	}
	if err := c.store.SetSession(token, claims); err != nil {
		return "", c.refreshFailed(ctx, NotifyRefreshFailed, req, resp.StatusCode, "", err)
	}

	c.metrics.Inc(MetricRefreshSuccess)
	c.metrics.Inc(MetricSessionSet)
	c.log.Debug().
		Str("email", claims.Email).
		Str("role", claims.Role.String()).
		Msg("session refreshed")

	return token, nil
}

func (c *Client) refreshFailed(ctx context.Context, kind NotificationKind, req Request, status int, msg string, cause error) error {
	c.metrics.Inc(MetricRefreshFailure)
	c.endSession(ctx, kind, req.Path, "refresh failed")
	return &RequestError{
		Kind:    ErrSessionExpired,
		Status:  status,
		Method:  req.method(),
		Path:    req.Path,
		Message: msg,
		Err:     cause,
	}
}

// endSession clears the stored session and tells the user.
func (c *Client) endSession(ctx context.Context, kind NotificationKind, path, reason string) {
	if err := c.store.ClearSession(); err != nil {
		c.log.Error().Err(err).Msg("clear session")
	}
	c.metrics.Inc(MetricSessionCleared)
	c.log.Warn().Str("path", path).Str("reason", reason).Msg("session ended")
	c.Notify(ctx, newNotification(kind, path))
}

func (c *Client) refreshTimeout() time.Duration {
	if c.cfg.Transport.Timeout > 0 {
		return c.cfg.Transport.Timeout
	}
	return 15 * time.Second
}

// rebind reports a shared refresh failure against the caller's own request.
func rebind(err error, req Request) error {
	var re *RequestError
	if !errors.As(err, &re) {
		return err
	}
	out := *re
	out.Method = req.method()
	out.Path = req.Path
	return &out
}
