package khata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boikhata/khata/permission"
	"github.com/boikhata/khata/storage"
)

type refreshMode int

const (
	refreshOK refreshMode = iota
	refreshRejected
	refreshNoToken
	refreshMalformed
)

// fakeBackend mimics the Boi Khata REST API closely enough to drive the request layer.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	seq           int
	current       string
	email         string
	role          permission.Role
	refreshCookie string
	mode          refreshMode
	refreshDelay  time.Duration
	authHeaders   []string
	requestIDs    []string

	refreshCalls atomic.Int32
	loginCalls   atomic.Int32
	logoutCalls  atomic.Int32
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", f.login)
	mux.HandleFunc("POST /api/v1/auth/refresh-token", f.refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", f.logout)
	mux.HandleFunc("GET /api/v1/stationary-product/products", f.protected)
	mux.HandleFunc("POST /api/v1/echo", f.echo)
	mux.HandleFunc("GET /api/v1/forbidden", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "Admins only"})
	})
	mux.HandleFunc("GET /api/v1/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Product not found"})
	})
	mux.HandleFunc("GET /api/v1/always-401", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "You are not authorized"})
	})
	mux.HandleFunc("GET /api/v1/teapot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTeapot, map[string]any{"success": false, "message": "short and stout"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) baseURL() string {
	return f.srv.URL + "/api/v1"
}

// expireAccess invalidates every access token while keeping the refresh cookie valid.
func (f *fakeBackend) expireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = ""
}

func (f *fakeBackend) setMode(m refreshMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
}

func (f *fakeBackend) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeBackend) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeBackend) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requestIDs...)
}

func (f *fakeBackend) issueLocked() string {
	f.seq++
	f.current = makeToken(f.email, f.role, f.seq)
	return f.current
}

func (f *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	f.loginCalls.Add(1)
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid body"})
		return
	}
	if body.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
		return
	}

	f.mu.Lock()
	f.email = body.Email
	f.role = permission.RoleUser
	if strings.HasPrefix(body.Email, "admin") {
		f.role = permission.RoleAdmin
	}
	token := f.issueLocked()
	f.refreshCookie = fmt.Sprintf("rt-%d", f.seq)
	cookie := f.refreshCookie
	f.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: cookie, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "User logged in successfully",
		"data":    map[string]any{"accessToken": token},
	})
}

func (f *fakeBackend) refresh(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	f.mu.Lock()
	delay := f.refreshDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	if r.Header.Get("Authorization") != "" {
		f.t.Errorf("refresh must not carry an access token")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	c, err := r.Cookie("refreshToken")
	if err != nil || f.refreshCookie == "" || c.Value != f.refreshCookie {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Refresh token missing"})
		return
	}

	switch f.mode {
	case refreshRejected:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Refresh token expired"})
	case refreshNoToken:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{}})
	case refreshMalformed:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"accessToken": "not-a-jwt"}})
	default:
		token := f.issueLocked()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Access token retrieved successfully",
			"data":    map[string]any{"accessToken": token},
		})
	}
}

func (f *fakeBackend) logout(w http.ResponseWriter, r *http.Request) {
	f.logoutCalls.Add(1)
	f.mu.Lock()
	f.refreshCookie = ""
	f.current = ""
	f.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
}

func (f *fakeBackend) protected(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")

	f.mu.Lock()
	f.authHeaders = append(f.authHeaders, auth)
	f.requestIDs = append(f.requestIDs, r.Header.Get("X-Request-ID"))
	valid := f.current != "" && (auth == f.current || auth == "Bearer "+f.current)
	f.mu.Unlock()

	if !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "You are not authorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Products retrieved successfully",
		"data":    map[string]any{"result": []any{}, "totalPages": 1, "query": r.URL.RawQuery},
	})
}

func (f *fakeBackend) echo(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"body":        body,
			"contentType": r.Header.Get("Content-Type"),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// makeToken returns an unsigned-looking JWT whose payload the client can decode.
func makeToken(email string, role permission.Role, seq int) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]any{
		"email": email,
		"role":  role,
		"iat":   1700000000 + seq,
		"exp":   1700003600 + seq,
		"jti":   seq,
	})
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

func newTestClient(t *testing.T, baseURL string, backend storage.Backend, sink NotificationSink, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Transport.Timeout = 5 * time.Second
	cfg.Notifications.DropIfFull = false
	cfg.Notifications.BufferSize = 64
	cfg.Metrics.EnableLatencyHistograms = true
	for _, m := range mutate {
		m(&cfg)
	}
	if backend == nil {
		backend = storage.NewMemory()
	}

	b := New().WithConfig(cfg).WithStorage(backend)
	if sink != nil {
		b.WithNotificationSink(sink)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// drain closes c so every queued notification reaches sink, then returns them.
func drain(t *testing.T, c *Client, sink *ChannelSink) []Notification {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("close client: %v", err)
	}
	var out []Notification
	for {
		select {
		case n := <-sink.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func countKind(ns []Notification, kind NotificationKind) int {
	n := 0
	for _, x := range ns {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

func mustLogin(t *testing.T, c *Client, email string) {
	t.Helper()
	if _, err := c.Login(testContext(t), email, "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
}
