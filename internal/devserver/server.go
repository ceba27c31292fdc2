package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/boikhata/khata/catalog"
	"github.com/boikhata/khata/internal/rate"
	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/password"
	"github.com/boikhata/khata/permission"
)

// RefreshCookie is the name of the HttpOnly refresh token cookie.
const RefreshCookie = "refreshToken"

// Config configures a Server.
type Config struct {
	Addr string
	// BasePath prefixes every route, e.g. "/api/v1".
	BasePath string
	Token    jwt.Config
	// RefreshTTL bounds the lifetime of a refresh cookie.
	RefreshTTL time.Duration
	Password   password.Config
	// SecureCookies sets the Secure flag on the refresh cookie.
	SecureCookies bool
	Release       bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig serves /api/v1 on localhost:5000 with HS256 tokens signed by key.
func DefaultConfig(key []byte) Config {
	return Config{
		Addr:     "localhost:5000",
		BasePath: "/api/v1",
		Token: jwt.Config{
			AccessTTL:     15 * time.Minute,
			SigningMethod: jwt.MethodHS256,
			PrivateKey:    key,
			Issuer:        "boikhata-devserver",
		},
		RefreshTTL:   7 * 24 * time.Hour,
		Password:     password.DefaultConfig(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type user struct {
	email string
	hash  string
	role  permission.Role
}

type refreshEntry struct {
	email   string
	hash    [32]byte
	expires time.Time
}

// Server is the development backend.
type Server struct {
	cfg     Config
	log     zerolog.Logger
	issuer  *jwt.Issuer
	hasher  *password.Hasher
	engine  *gin.Engine
	server  *http.Server
	faults  *Faults
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	users    map[string]user
	refresh  map[string]refreshEntry
	products []catalog.Product
}

// Option configures a Server.
type Option func(*Server)

// WithLimiter throttles login failures and refreshes. Without one nothing is throttled.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// New builds a Server with no users and no products.
func New(cfg Config, log zerolog.Logger, opts ...Option) (*Server, error) {
	if cfg.RefreshTTL <= 0 {
		return nil, errors.New("devserver: refresh ttl must be > 0")
	}
	cfg.BasePath = "/" + strings.Trim(cfg.BasePath, "/")

	issuer, err := jwt.NewIssuer(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("devserver: token issuer: %w", err)
	}
	hasher, err := password.NewHasher(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("devserver: password hasher: %w", err)
	}

	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		issuer:  issuer,
		hasher:  hasher,
		faults:  &Faults{},
		now:     time.Now,
		users:   map[string]user{},
		refresh: map[string]refreshEntry{},
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(requestID(), accessLog(log), recovery(log))
	s.routes(engine.Group(cfg.BasePath))
	s.engine = engine

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	auth.POST("/login", s.login)
	auth.POST("/refresh-token", s.refreshToken)
	auth.POST("/logout", s.logout)

	products := api.Group("/stationary-product", s.authenticate())
	products.GET("/products", s.listProducts)
	products.GET("/product/:id", s.getProduct)

	mutate := products.Group("", requireRole(permission.RoleAdmin, permission.RoleSuperAdmin))
	mutate.POST("/product", s.createProduct)
	mutate.PUT("/product/:id", s.updateProduct)
	mutate.DELETE("/product/:id", s.deleteProduct)
}

// Handler returns the router, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Faults returns the fault injector.
func (s *Server) Faults() *Faults {
	return s.faults
}

// AddUser registers an account. Re-adding an email replaces it.
func (s *Server) AddUser(email, plain string, role permission.Role) error {
	email = normalizeEmail(email)
	if email == "" {
		return errors.New("devserver: email is required")
	}
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = user{email: email, hash: hash, role: role}
	return nil
}

// SeedProducts adds products, assigning ids and timestamps to those without.
func (s *Server) SeedProducts(products ...catalog.Product) []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		p = s.stampLocked(p, "")
		s.products = append(s.products, p)
		out = append(out, p)
	}
	return out
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Str("base_path", s.cfg.BasePath).Msg("devserver starting")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen and serve: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("devserver shutting down")
	return s.server.Shutdown(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
