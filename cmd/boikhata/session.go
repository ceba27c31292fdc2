package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/boikhata/khata/guard"
	"github.com/boikhata/khata/permission"
)

// PasswordEnv is read when login gets no -password flag.
const PasswordEnv = "BOIKHATA_PASSWORD"

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := subFlags("login", a.out)
	email := fs.String("email", "", "account email")
	pass := fs.String("password", "", "account password (default $"+PasswordEnv+")")
	if err := parseSub(fs, args); err != nil {
		return err
	}
	if *pass == "" {
		*pass = os.Getenv(PasswordEnv)
	}
	if strings.TrimSpace(*email) == "" || *pass == "" {
		return errUsage
	}

	claims, err := a.client.Login(ctx, *email, *pass)
	if err != nil {
		return err
	}
	landing, _ := a.client.Roles().Landing(claims.Role)
	if a.json {
		return a.printJSON(map[string]any{"email": claims.Email, "role": claims.Role, "landing": landing})
	}
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", claims.Email, claims.Role)
	if landing != "" {
		fmt.Fprintf(a.out, "home: %s\n", landing)
	}
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := a.client.AwaitRehydration(ctx); err != nil {
		return err
	}
	sess := a.client.Session()
	if !sess.LoggedIn() {
		if a.json {
			return a.printJSON(map[string]any{"loggedIn": false})
		}
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}

	u := sess.User
	if a.json {
		return a.printJSON(map[string]any{"loggedIn": true, "email": u.Email, "role": u.Role, "expiresAt": u.ExpiresAt})
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "email\t%s\n", u.Email)
	fmt.Fprintf(tw, "role\t%s\n", u.Role)
	if !u.ExpiresAt.IsZero() {
		fmt.Fprintf(tw, "expires\t%s\n", u.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func cmdRoute(ctx context.Context, a *app, args []string) error {
	path, err := oneArg(args)
	if err != nil {
		return err
	}
	d := decide(ctx, a.guards, path)

	if a.json {
		return a.printJSON(map[string]any{"path": path, "outcome": d.Outcome.String(), "target": d.Target})
	}
	if d.Redirect() {
		fmt.Fprintf(a.out, "%s -> %s\n", d.Outcome, d.Target)
		return nil
	}
	fmt.Fprintln(a.out, d.Outcome)
	return nil
}

// decide maps a dashboard path onto its guard.
func decide(ctx context.Context, g *guard.Guards, path string) guard.Decision {
	switch {
	case path == g.LoginPath():
		return g.RedirectIfLoggedIn(ctx)
	case path == "/dashboard" || path == "/dashboard/":
		return g.RoleRedirect(ctx)
	case under(path, permission.AdminLanding):
		return g.Role(ctx, permission.RoleAdmin, permission.RoleSuperAdmin)
	case under(path, permission.UserLanding):
		return g.Role(ctx, permission.RoleUser)
	default:
		return g.Auth(ctx, path)
	}
}

// under reports whether path is root or lies below it.
func under(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

func cmdMetrics(_ context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	snap := a.client.MetricsSnapshot()

	values := make(map[string]uint64, len(snap.Counters))
	for id, v := range snap.Counters {
		values[id.String()] = v
	}
	if a.json {
		return a.printJSON(values)
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, values[name])
	}
	return tw.Flush()
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
