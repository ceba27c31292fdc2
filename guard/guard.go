package guard

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/boikhata/khata"
	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/permission"
	"github.com/boikhata/khata/session"
)

// Outcome is the state of one navigation check.
type Outcome uint8

const (
	Pending Outcome = iota
	Permitted
	RedirectLogin
	RedirectRoleHome
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Permitted:
		return "permitted"
	case RedirectLogin:
		return "redirect_login"
	case RedirectRoleHome:
		return "redirect_role_home"
	default:
		return "unknown"
	}
}

// Decision is a terminal check result. Target is set for redirects; User is set when a
// permitted check had a logged-in user.
type Decision struct {
	Outcome Outcome
	Target  string
	User    *jwt.Claims
}

// Redirect reports whether the decision sends the caller elsewhere.
func (d Decision) Redirect() bool {
	return d.Outcome == RedirectLogin || d.Outcome == RedirectRoleHome
}

// Source is what the guards read. *khata.Client implements it.
type Source interface {
	Session() session.Session
	AwaitRehydration(ctx context.Context) error
	Roles() *permission.RoleManager
	NotifyKind(ctx context.Context, kind khata.NotificationKind, path string)
	Metrics() *khata.Metrics
	Logger() *zerolog.Logger
}

// DefaultLoginPath is where unauthenticated navigations are sent.
const DefaultLoginPath = "/login"

// ReturnToParam carries the originally requested path on the login redirect.
const ReturnToParam = "from"

// Option configures Guards.
type Option func(*Guards)

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(p string) Option {
	return func(g *Guards) {
		if p != "" {
			g.loginPath = p
		}
	}
}

// Guards evaluates navigation checks against one Source.
type Guards struct {
	src       Source
	loginPath string
}

func New(src Source, opts ...Option) *Guards {
	g := &Guards{
		src:       src,
		loginPath: DefaultLoginPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoginPath returns the configured login route.
func (g *Guards) LoginPath() string {
	return g.loginPath
}

// Auth permits any logged-in user. Otherwise it redirects to the login route with the
// requested path as the return-to parameter.
func (g *Guards) Auth(ctx context.Context, requestedPath string) Decision {
	sess, ok := g.await(ctx)
	if !ok || !sess.LoggedIn() {
		return g.toLogin(requestedPath)
	}
	return g.permit(sess.User)
}

// Role permits a logged-in user whose role is in allowed. A logged-in user with a missing
// or disallowed role triggers one "unauthorized" notification and is sent to login.
func (g *Guards) Role(ctx context.Context, allowed ...permission.Role) Decision {
	sess, ok := g.await(ctx)
	if !ok || !sess.LoggedIn() {
		return g.toLogin("")
	}

	var role permission.Role
	if sess.User != nil {
		role = sess.User.Role
	}
	if !permission.Contains(allowed, role) {
		g.src.Metrics().Inc(khata.MetricGuardUnauthorized)
		g.src.NotifyKind(ctx, khata.NotifyUnauthorized, "")
		g.log().Info().
			Str("role", role.String()).
			Interface("allowed", allowed).
			Msg("role not allowed")
		return g.toLogin("")
	}
	return g.permit(sess.User)
}

// RoleRedirect sends a logged-in user to the landing route of their role. Unknown roles and
// missing sessions go to login.
func (g *Guards) RoleRedirect(ctx context.Context) Decision {
	sess, ok := g.await(ctx)
	if !ok || !sess.LoggedIn() || sess.User == nil {
		return g.toLogin("")
	}
	landing, known := g.src.Roles().Landing(sess.User.Role)
	if !known {
		return g.toLogin("")
	}
	return g.toHome(landing)
}

// RedirectIfLoggedIn guards the login page: a user with a known role is sent home, anyone
// else may see the login form.
func (g *Guards) RedirectIfLoggedIn(ctx context.Context) Decision {
	sess, ok := g.await(ctx)
	if !ok || !sess.LoggedIn() || sess.User == nil || sess.User.Role == "" {
		return g.permit(nil)
	}
	landing, known := g.src.Roles().Landing(sess.User.Role)
	if !known {
		return g.permit(nil)
	}
	return g.toHome(landing)
}

func (g *Guards) await(ctx context.Context) (session.Session, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := g.src.AwaitRehydration(ctx); err != nil {
		g.log().Debug().Err(err).Msg("guard wait ended before rehydration")
		return session.Session{}, false
	}
	return g.src.Session(), true
}

func (g *Guards) permit(user *jwt.Claims) Decision {
	g.src.Metrics().Inc(khata.MetricGuardPermitted)
	return Decision{Outcome: Permitted, User: user}
}

func (g *Guards) toLogin(from string) Decision {
	g.src.Metrics().Inc(khata.MetricGuardRedirectLogin)
	target := g.loginPath
	if from != "" && from != g.loginPath {
		target += "?" + url.Values{ReturnToParam: {from}}.Encode()
	}
	return Decision{Outcome: RedirectLogin, Target: target}
}

func (g *Guards) toHome(landing string) Decision {
	g.src.Metrics().Inc(khata.MetricGuardRedirectHome)
	return Decision{Outcome: RedirectRoleHome, Target: landing}
}

func (g *Guards) log() *zerolog.Logger {
	if l := g.src.Logger(); l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
