package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/boikhata/khata/internal/rate"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (s *Server) login(c *gin.Context) {
	// Validation runs on the normalized address so padded or mixed-case input is accepted.
	var req loginRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid email or password")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid email or password")
		return
	}

	ctx := c.Request.Context()
	email := req.Email
	if s.limiter != nil {
		if err := s.limiter.AllowLogin(ctx, email, c.ClientIP()); errors.Is(err, rate.ErrLimited) {
			fail(c, http.StatusTooManyRequests, "Too many login attempts, try again later")
			return
		} else if err != nil {
			s.log.Warn().Err(err).Msg("login limiter unavailable")
		}
	}

	s.mu.Lock()
	u, found := s.users[email]
	s.mu.Unlock()
	if !found {
		s.loginFailed(c, email)
		fail(c, http.StatusUnauthorized, "User does not exist")
		return
	}

	match, err := s.hasher.Verify(req.Password, u.hash)
	if err != nil {
		s.log.Error().Err(err).Str("email", u.email).Msg("stored password hash is unreadable")
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !match {
		s.loginFailed(c, email)
		fail(c, http.StatusUnauthorized, "Password did not match")
		return
	}

	if s.limiter != nil {
		if err := s.limiter.LoginSucceeded(ctx, email); err != nil {
			s.log.Warn().Err(err).Msg("login limiter unavailable")
		}
	}
	s.issueSession(c, u, "User logged in successfully")
}

func (s *Server) refreshToken(c *gin.Context) {
	s.faults.refreshCalls.Add(1)
	if s.faults.failRefresh.Load() {
		fail(c, http.StatusUnauthorized, "You are not authorized!")
		return
	}

	if s.limiter != nil {
		if err := s.limiter.Refresh(c.Request.Context(), c.ClientIP()); errors.Is(err, rate.ErrLimited) {
			fail(c, http.StatusTooManyRequests, "Too many requests")
			return
		} else if err != nil {
			s.log.Warn().Err(err).Msg("refresh limiter unavailable")
		}
	}

	raw, err := c.Cookie(RefreshCookie)
	if err != nil || raw == "" {
		fail(c, http.StatusUnauthorized, "You are not authorized!")
		return
	}
	token, err := parseRefreshToken(raw)
	if err != nil {
		fail(c, http.StatusUnauthorized, "You are not authorized!")
		return
	}

	// A token is spent on first use, matching or not.
	s.mu.Lock()
	entry, found := s.refresh[token.id]
	delete(s.refresh, token.id)
	u, userFound := s.users[entry.email]
	s.mu.Unlock()

	if !found || !token.matches(entry.hash) || !s.now().Before(entry.expires) || !userFound {
		fail(c, http.StatusUnauthorized, "You are not authorized!")
		return
	}

	s.issueSession(c, u, "Access token retrieved successfully")
}

func (s *Server) logout(c *gin.Context) {
	if raw, err := c.Cookie(RefreshCookie); err == nil {
		if token, err := parseRefreshToken(raw); err == nil {
			s.mu.Lock()
			if entry, ok := s.refresh[token.id]; ok && token.matches(entry.hash) {
				delete(s.refresh, token.id)
			}
			s.mu.Unlock()
		}
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookie, "", -1, "/", "", s.cfg.SecureCookies, true)
	ok(c, http.StatusOK, "User logged out successfully", nil)
}

// issueSession signs an access token for u and rotates the refresh cookie.
func (s *Server) issueSession(c *gin.Context, u user, message string) {
	access, err := s.issuer.Issue(u.email, u.role)
	if err != nil {
		s.log.Error().Err(err).Msg("sign access token")
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	refresh, err := newRefreshToken()
	if err != nil {
		s.log.Error().Err(err).Msg("generate refresh token")
		fail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.mu.Lock()
	s.refresh[refresh.id] = refreshEntry{
		email:   u.email,
		hash:    refresh.hash(),
		expires: s.now().Add(s.cfg.RefreshTTL),
	}
	s.mu.Unlock()

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(RefreshCookie, refresh.String(), int(s.cfg.RefreshTTL.Seconds()), "/", "", s.cfg.SecureCookies, true)
	ok(c, http.StatusOK, message, tokenResponse{AccessToken: access})
}

func (s *Server) loginFailed(c *gin.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.LoginFailed(c.Request.Context(), email, c.ClientIP()); err != nil {
		s.log.Warn().Err(err).Msg("login limiter unavailable")
	}
}
