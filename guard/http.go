package guard

import (
	"context"
	"net/http"

	"github.com/boikhata/khata/jwt"
	"github.com/boikhata/khata/permission"
)

type userContextKey struct{}

// UserFromContext returns the claims a permitting guard placed on the request.
func UserFromContext(ctx context.Context) (*jwt.Claims, bool) {
	user, ok := ctx.Value(userContextKey{}).(*jwt.Claims)
	return user, ok && user != nil
}

// Check evaluates one guard for an incoming request.
type Check func(g *Guards, r *http.Request) Decision

// RequireAuth checks with Auth, using the request URI as the return-to path.
func RequireAuth() Check {
	return func(g *Guards, r *http.Request) Decision {
		return g.Auth(r.Context(), r.URL.RequestURI())
	}
}

// RequireRole checks with Role.
func RequireRole(allowed ...permission.Role) Check {
	return func(g *Guards, r *http.Request) Decision {
		return g.Role(r.Context(), allowed...)
	}
}

// LandingRedirect checks with RoleRedirect.
func LandingRedirect() Check {
	return func(g *Guards, r *http.Request) Decision {
		return g.RoleRedirect(r.Context())
	}
}

// LoginPage checks with RedirectIfLoggedIn.
func LoginPage() Check {
	return func(g *Guards, r *http.Request) Decision {
		return g.RedirectIfLoggedIn(r.Context())
	}
}

// Middleware adapts check to net/http: redirects become 302 responses, permitted requests
// carry the user in their context.
func Middleware(g *Guards, check Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if g == nil || check == nil {
				http.Redirect(w, r, DefaultLoginPath, http.StatusFound)
				return
			}

			d := check(g, r)
			if d.Redirect() {
				http.Redirect(w, r, d.Target, http.StatusFound)
				return
			}

			ctx := r.Context()
			if d.User != nil {
				ctx = context.WithValue(ctx, userContextKey{}, d.User)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
