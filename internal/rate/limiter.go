package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrLimited          = errors.New("rate: too many attempts")
	ErrRedisUnavailable = errors.New("rate: redis unavailable")
)

// Config bounds attempts per window. A zero Max disables that counter.
type Config struct {
	Prefix string

	MaxLoginFailures int
	LoginWindow      time.Duration
	// PerIP also counts login failures per client address.
	PerIP bool

	MaxRefreshes  int
	RefreshWindow time.Duration
}

// DefaultConfig allows five failed logins per account per 15 minutes and 30 refreshes
// per address per minute.
func DefaultConfig() Config {
	return Config{
		Prefix:           "bk",
		MaxLoginFailures: 5,
		LoginWindow:      15 * time.Minute,
		PerIP:            true,
		MaxRefreshes:     30,
		RefreshWindow:    time.Minute,
	}
}

type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "bk"
	}
	return &Limiter{rdb: rdb, cfg: cfg}
}

// AllowLogin reports ErrLimited when email, or ip when PerIP is set, has used up its
// failure budget. It does not count an attempt.
func (l *Limiter) AllowLogin(ctx context.Context, email, ip string) error {
	if l.cfg.MaxLoginFailures <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		n, err := l.rdb.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n >= int64(l.cfg.MaxLoginFailures) {
			return ErrLimited
		}
	}
	return nil
}

// LoginFailed counts one failed attempt.
func (l *Limiter) LoginFailed(ctx context.Context, email, ip string) error {
	if l.cfg.MaxLoginFailures <= 0 {
		return nil
	}
	for _, key := range l.loginKeys(email, ip) {
		if _, err := l.hit(ctx, key, l.cfg.LoginWindow); err != nil {
			return err
		}
	}
	return nil
}

// LoginSucceeded clears the account counter. The address counter keeps running so one
// valid account cannot be used to reset a guessing client.
func (l *Limiter) LoginSucceeded(ctx context.Context, email string) error {
	if l.cfg.MaxLoginFailures <= 0 {
		return nil
	}
	if err := l.rdb.Del(ctx, l.key("login", normalize(email))).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Refresh counts one refresh from ip and reports ErrLimited past the budget.
func (l *Limiter) Refresh(ctx context.Context, ip string) error {
	if l.cfg.MaxRefreshes <= 0 || ip == "" {
		return nil
	}
	n, err := l.hit(ctx, l.key("refresh", ip), l.cfg.RefreshWindow)
	if err != nil {
		return err
	}
	if n > int64(l.cfg.MaxRefreshes) {
		return ErrLimited
	}
	return nil
}

// LoginFailures returns the current account counter. A missing key is zero.
func (l *Limiter) LoginFailures(ctx context.Context, email string) (int, error) {
	n, err := l.rdb.Get(ctx, l.key("login", normalize(email))).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

func (l *Limiter) loginKeys(email, ip string) []string {
	keys := []string{l.key("login", normalize(email))}
	if l.cfg.PerIP && ip != "" {
		keys = append(keys, l.key("login-ip", ip))
	}
	return keys
}

func (l *Limiter) key(kind, id string) string {
	return l.cfg.Prefix + ":" + kind + ":" + id
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return n, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
