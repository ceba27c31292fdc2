package khata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/boikhata/khata/jwt"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for an access token and stores the resulting session. The
// backend sets the refresh cookie on the same response. Login never triggers a refresh.
func (c *Client) Login(ctx context.Context, email, password string) (jwt.Claims, error) {
	req := Request{
		Method: http.MethodPost,
		Path:   c.cfg.Auth.LoginPath,
		Body:   loginRequest{Email: strings.TrimSpace(email), Password: password},
	}
	if c.closed.Load() {
		return jwt.Claims{}, &RequestError{Kind: ErrClientClosed, Method: req.method(), Path: req.Path}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	claims, err := c.login(ctx, req)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		n := newNotification(NotifyLoginFailure, req.Path)
		if msg := messageOf(err); msg != "" {
			n.Message = msg
		}
		c.Notify(ctx, n)
		c.log.Info().Err(err).Msg("login failed")
		return jwt.Claims{}, err
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.metrics.Inc(MetricSessionSet)
	c.Notify(ctx, newNotification(NotifyLoginSuccess, req.Path))
	c.log.Info().Str("email", claims.Email).Str("role", claims.Role.String()).Msg("logged in")
	return claims, nil
}

func (c *Client) login(ctx context.Context, req Request) (jwt.Claims, error) {
	// A late rehydration must not overwrite the fresh session.
	if err := c.store.AwaitRehydration(ctx); err != nil {
		return jwt.Claims{}, networkError(req, err)
	}

	resp, err := c.send(ctx, req, "")
	if err != nil {
		return jwt.Claims{}, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return jwt.Claims{}, &RequestError{
			Kind:    ErrInvalidCredentials,
			Status:  resp.StatusCode,
			Method:  req.method(),
			Path:    req.Path,
			Message: backendMessage(resp.Body),
		}
	case !isSuccess(resp.StatusCode):
		_, err := c.classify(ctx, req, resp)
		return jwt.Claims{}, err
	}

	var env APIResponse[tokenData]
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return jwt.Claims{}, &RequestError{Kind: ErrInvalidResponse, Status: resp.StatusCode, Method: req.method(), Path: req.Path, Err: err}
	}
	token := env.Data.token()
	if !env.Success && token == "" {
		return jwt.Claims{}, &RequestError{
			Kind:    ErrInvalidCredentials,
			Status:  resp.StatusCode,
			Method:  req.method(),
			Path:    req.Path,
			Message: env.Message,
		}
	}

	claims, err := jwt.Decode(token)
	if err != nil {
		return jwt.Claims{}, &RequestError{Kind: ErrMalformedToken, Status: resp.StatusCode, Method: req.method(), Path: req.Path, Err: err}
	}
	if err := c.store.SetSession(token, claims); err != nil {
		return jwt.Claims{}, &RequestError{Kind: ErrInvalidResponse, Status: resp.StatusCode, Method: req.method(), Path: req.Path, Err: err}
	}
	return claims, nil
}

// Logout clears the session and the persisted refresh cookie, then waits for both to reach
// storage. When LogoutPath is configured the backend is told first, best effort.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.store.AwaitRehydration(ctx); err != nil {
		return err
	}

	sess := c.store.Session()
	if c.cfg.Auth.LogoutPath != "" && sess.LoggedIn() {
		req := Request{Method: http.MethodPost, Path: c.cfg.Auth.LogoutPath}
		if resp, err := c.send(ctx, req, sess.Token); err != nil {
			c.log.Warn().Err(err).Msg("logout call failed")
		} else if !isSuccess(resp.StatusCode) {
			c.log.Warn().Int("status", resp.StatusCode).Msg("logout call rejected")
		}
	}

	var errs []error
	if err := c.store.ClearSession(); err != nil {
		errs = append(errs, err)
	}
	if err := c.jar.clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.store.Flush(ctx); err != nil {
		errs = append(errs, err)
	}

	c.metrics.Inc(MetricLogout)
	c.metrics.Inc(MetricSessionCleared)
	c.Notify(ctx, newNotification(NotifyLogout, ""))
	c.log.Info().Msg("logged out")

	return errors.Join(errs...)
}

func messageOf(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Message
	}
	return ""
}
