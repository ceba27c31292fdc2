package khata

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/boikhata/khata/internal/notify"
	"github.com/boikhata/khata/permission"
	"github.com/boikhata/khata/session"
	"github.com/boikhata/khata/storage"
)

// Builder assembles a Client. A Builder is single use.
type Builder struct {
	config     Config
	backend    storage.Backend
	httpClient *http.Client
	logger     *zerolog.Logger
	sink       NotificationSink
	roles      *permission.RoleManager

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStorage overrides Config.Storage with an already opened backend. The client does not
// close it.
func (b *Builder) WithStorage(backend storage.Backend) *Builder {
	b.backend = backend
	return b
}

// WithHTTPClient supplies the transport. Its Jar is replaced by the client's persistent jar.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = &log
	return b
}

// WithNotificationSink sets where notifications go. Without it, notifications are logged.
func (b *Builder) WithNotificationSink(sink NotificationSink) *Builder {
	b.sink = sink
	return b
}

// WithRoles supplies the role registry; it is frozen by Build.
func (b *Builder) WithRoles(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// Build validates the configuration, opens storage when none was supplied, restores the
// cookie jar and starts rehydrating the session. Rehydration continues in the background;
// every request waits for it.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	log := zerolog.Nop()
	if b.logger != nil {
		log = *b.logger
	}
	log = log.With().Str("component", "khata").Logger()

	roles := b.roles
	if roles == nil {
		roles = permission.DefaultRoleManager()
	}
	if len(roles.Roles()) == 0 {
		return nil, errors.New("role registry is empty")
	}
	roles.Freeze()

	persistTimeout := cfg.Session.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = DefaultConfig().Session.PersistTimeout
	}

	c := &Client{
		cfg:     cfg,
		base:    base,
		roles:   roles,
		log:     log,
		metrics: NewMetrics(cfg.Metrics),
	}

	backend := b.backend
	if backend == nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		opened, closeFn, err := OpenStorage(ctx, cfg.Storage)
		cancel()
		if err != nil {
			return nil, err
		}
		backend = opened
		c.closers = append(c.closers, closeFn)
	}
	c.backend = backend

	jar, err := newPersistentJar(backend, storage.Namespaced(cfg.Session.Namespace, CookiesKey), persistTimeout, log)
	if err != nil {
		return nil, err
	}
	if err := jar.restore(context.Background()); err != nil {
		// The session can still be used until the backend asks for a refresh.
		log.Warn().Err(err).Msg("restore cookies")
	}
	c.jar = jar

	var hc http.Client
	if b.httpClient != nil {
		hc = *b.httpClient
	}
	hc.Jar = jar
	if hc.Timeout == 0 {
		hc.Timeout = cfg.Transport.Timeout
	}
	c.http = &hc

	if cfg.Transport.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.Transport.RateLimit), cfg.Transport.Burst)
	}

	sink := b.sink
	if sink == nil {
		sink = NewLogSink(log)
	}
	c.notifier = notify.NewDispatcher[Notification](notify.Config{
		Enabled:    cfg.Notifications.Enabled,
		BufferSize: cfg.Notifications.BufferSize,
		DropIfFull: cfg.Notifications.DropIfFull,
	}, sink)

	c.store = session.Open(backend, session.Options{
		Key:       storage.Namespaced(cfg.Session.Namespace, session.DefaultKey),
		WarnAfter: cfg.Session.RehydrationWarnAfter,
		IOTimeout: persistTimeout,
		Logger:    &log,
	})

	b.built = true

	return c, nil
}
