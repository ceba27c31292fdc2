// Command boikhata-devserver runs the in-memory development backend with seeded accounts
// and a small sample catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/boikhata/khata"
	"github.com/boikhata/khata/catalog"
	"github.com/boikhata/khata/internal/devserver"
	"github.com/boikhata/khata/internal/rate"
	"github.com/boikhata/khata/permission"
)

// KeyEnv supplies the token signing key when -key is not given.
const KeyEnv = "BOIKHATA_DEV_KEY"

func main() {
	var (
		addr      = flag.String("addr", "localhost:5000", "listen address")
		basePath  = flag.String("base-path", "/api/v1", "route prefix")
		key       = flag.String("key", "", "HS256 signing key (default $"+KeyEnv+")")
		tokenTTL  = flag.Duration("token-ttl", 15*time.Minute, "access token lifetime")
		admin     = flag.String("admin", "admin@boikhata.dev:admin123", "admin account as email:password")
		user      = flag.String("user", "user@boikhata.dev:user123", "user account as email:password")
		seed      = flag.Bool("seed", true, "seed sample products")
		redisAddr = flag.String("redis-addr", "", "redis for login throttling; empty runs an in-process miniredis, \"off\" disables throttling")
		level     = flag.String("log-level", "info", "log level")
		pretty    = flag.Bool("pretty", true, "human readable logs")
	)
	flag.Parse()

	log := khata.NewLogger(khata.LogConfig{Level: *level, Pretty: *pretty}, os.Stderr).
		With().Str("component", "devserver").Logger()

	opts := options{
		addr: *addr, basePath: *basePath, key: *key, tokenTTL: *tokenTTL,
		admin: *admin, user: *user, seed: *seed, redisAddr: *redisAddr,
	}
	if err := run(log, opts); err != nil {
		log.Error().Err(err).Msg("devserver failed")
		os.Exit(1)
	}
}

type options struct {
	addr      string
	basePath  string
	key       string
	tokenTTL  time.Duration
	admin     string
	user      string
	seed      bool
	redisAddr string
}

func run(log zerolog.Logger, o options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key := o.key
	if key == "" {
		key = os.Getenv(KeyEnv)
	}
	if key == "" {
		key = "boikhata-dev-signing-key"
		log.Warn().Msg("using the built-in signing key; set -key or " + KeyEnv)
	}

	cfg := devserver.DefaultConfig([]byte(key))
	cfg.Addr = o.addr
	cfg.BasePath = o.basePath
	cfg.Token.AccessTTL = o.tokenTTL

	var opts []devserver.Option
	if o.redisAddr != "off" {
		rdb, cleanup, err := openRedis(ctx, log, o.redisAddr)
		if err != nil {
			return err
		}
		defer cleanup()
		opts = append(opts, devserver.WithLimiter(rate.New(rdb, rate.DefaultConfig())))
	}

	srv, err := devserver.New(cfg, log, opts...)
	if err != nil {
		return err
	}

	accounts := []struct {
		pair string
		role permission.Role
	}{
		{o.admin, permission.RoleAdmin},
		{o.user, permission.RoleUser},
	}
	for _, a := range accounts {
		if a.pair == "" {
			continue
		}
		email, pass, ok := strings.Cut(a.pair, ":")
		if !ok {
			return fmt.Errorf("account %q: want email:password", a.pair)
		}
		if err := srv.AddUser(email, pass, a.role); err != nil {
			return fmt.Errorf("account %s: %w", email, err)
		}
		log.Info().Str("email", email).Str("role", a.role.String()).Msg("account ready")
	}

	if o.seed {
		n := len(srv.SeedProducts(sampleProducts()...))
		log.Info().Int("products", n).Msg("catalog seeded")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRedis connects to addr, or starts an in-process miniredis when addr is empty.
func openRedis(ctx context.Context, log zerolog.Logger, addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		log.Info().Str("addr", mr.Addr()).Msg("throttling with in-process miniredis")
		return rdb, func() {
			_ = rdb.Close()
			mr.Close()
		}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("throttling with redis")
	return rdb, func() { _ = rdb.Close() }, nil
}

func sampleProducts() []catalog.Product {
	return []catalog.Product{
		{Name: "Gel Pen", Photo: "https://images.boikhata.dev/gel-pen.jpg", Brand: "Pilot", Description: "Smooth 0.5mm black gel pen", Price: 1.5, Category: catalog.CategoryWriting, Quantity: 250, InStock: true},
		{Name: "A5 Notebook", Photo: "https://images.boikhata.dev/notebook.jpg", Brand: "Classmate", Description: "Ruled notebook, 200 pages", Price: 3, Category: catalog.CategoryEducational, Quantity: 120, InStock: true},
		{Name: "Watercolour Set", Photo: "https://images.boikhata.dev/watercolour.jpg", Brand: "Winsor", Description: "Twelve half pans with a travel brush", Price: 24, Category: catalog.CategoryArtSupplies, Quantity: 18, InStock: true},
		{Name: "Desk Stapler", Photo: "https://images.boikhata.dev/stapler.jpg", Brand: "Kangaro", Description: "Staples up to 20 sheets", Price: 7.25, Category: catalog.CategoryOfficeSupplies, Quantity: 40, InStock: true},
		{Name: "Scientific Calculator", Photo: "https://images.boikhata.dev/calculator.jpg", Brand: "Casio", Description: "Two line display, 240 functions", Price: 15, Category: catalog.CategoryTechnology, Quantity: 0, InStock: false},
	}
}
