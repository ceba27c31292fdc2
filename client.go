package khata

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/boikhata/khata/internal/notify"
	"github.com/boikhata/khata/permission"
	"github.com/boikhata/khata/session"
	"github.com/boikhata/khata/storage"
)

// Client is an authenticated Boi Khata API client. Construct it with [Builder.Build].
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	backend storage.Backend
	store   *session.Store
	jar     *persistentJar
	roles   *permission.RoleManager
	log     zerolog.Logger
	metrics *Metrics

	notifier *notify.Dispatcher[Notification]
	limiter  *rate.Limiter

	refreshes singleflight.Group

	closers   []func() error
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Session returns the current session snapshot without waiting for rehydration.
func (c *Client) Session() session.Session {
	return c.store.Session()
}

// Envelope returns the current snapshot together with the rehydration marker.
func (c *Client) Envelope() session.Envelope {
	return c.store.Envelope()
}

// AwaitRehydration blocks until the persisted session has been loaded or ctx ends.
func (c *Client) AwaitRehydration(ctx context.Context) error {
	return c.store.AwaitRehydration(ctx)
}

// Subscribe streams session changes; see session.Store.Subscribe.
func (c *Client) Subscribe() (<-chan session.Session, func()) {
	return c.store.Subscribe()
}

// Roles returns the frozen role registry.
func (c *Client) Roles() *permission.RoleManager {
	return c.roles
}

// Storage returns the durable backend shared by the session, the cookie jar and any cache
// built on top of the client.
func (c *Client) Storage() storage.Backend {
	return c.backend
}

// StorageKey namespaces key the same way the client's own keys are namespaced.
func (c *Client) StorageKey(key string) string {
	return storage.Namespaced(c.cfg.Session.Namespace, key)
}

// Config returns a copy of the validated configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Logger returns the client's logger.
func (c *Client) Logger() *zerolog.Logger {
	return &c.log
}

// Metrics returns the live counters. Guards and other packages built on the client
// record into it.
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Notify delivers n to the configured sink. It never blocks when DropIfFull is set.
func (c *Client) Notify(ctx context.Context, n Notification) {
	if n.Timestamp.IsZero() {
		n = withTimestamp(n)
	}
	c.notifier.Emit(ctx, n)
}

// NotifyKind delivers the default notification for kind.
func (c *Client) NotifyKind(ctx context.Context, kind NotificationKind, path string) {
	c.Notify(ctx, newNotification(kind, path))
}

// NotificationsDropped reports notifications discarded because the buffer was full.
func (c *Client) NotificationsDropped() uint64 {
	return c.notifier.Dropped()
}

// Close flushes the session, drains pending notifications and releases storage. Calls
// made after Close fail with ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		var errs []error
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
		c.notifier.Close()
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}
