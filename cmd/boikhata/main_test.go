package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/boikhata/khata/catalog"
	"github.com/boikhata/khata/internal/devserver"
	"github.com/boikhata/khata/password"
	"github.com/boikhata/khata/permission"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type harness struct {
	t      *testing.T
	config string
	state  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := devserver.DefaultConfig([]byte("cli-test-key"))
	cfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	srv, err := devserver.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	if err := srv.AddUser("admin@boikhata.test", "admin-pass", permission.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	srv.SeedProducts(
		catalog.Product{Name: "Gel Pen", Brand: "Pilot", Price: 2, Category: catalog.CategoryWriting, Quantity: 10},
		catalog.Product{Name: "Stapler", Brand: "Kangaro", Price: 8, Category: catalog.CategoryOfficeSupplies, Quantity: 3},
	)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "boikhata.yaml")
	yaml := "baseurl: " + ts.URL + "/api/v1\n" +
		"auth:\n  logoutpath: /auth/logout\n" +
		"log:\n  level: error\n"
	if err := os.WriteFile(configPath, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, config: configPath, state: filepath.Join(dir, "state")}
}

// run invokes the command with a fresh client, as a separate process would.
func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	full := append([]string{"-config", h.config, "-state", h.state}, args...)
	code := run(ctx, full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.run(args...)
	if code != 0 {
		h.t.Fatalf("boikhata %s: exit %d\nstderr: %s", strings.Join(args, " "), code, errOut)
	}
	return out
}

func TestSessionSurvivesBetweenRuns(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("login", "-email", "admin@boikhata.test", "-password", "admin-pass")
	if !strings.Contains(out, "logged in as admin@boikhata.test (admin)") || !strings.Contains(out, "home: /dashboard/admin") {
		t.Fatalf("unexpected login output %q", out)
	}

	if out := h.mustRun("whoami"); !strings.Contains(out, "admin@boikhata.test") {
		t.Fatalf("expected persisted session, got %q", out)
	}
	if out := h.mustRun("route", "/dashboard"); strings.TrimSpace(out) != "redirect_role_home -> /dashboard/admin" {
		t.Fatalf("unexpected route output %q", out)
	}
	if out := h.mustRun("route", "/dashboard/admin/products"); strings.TrimSpace(out) != "permitted" {
		t.Fatalf("unexpected route output %q", out)
	}

	if out := h.mustRun("logout"); strings.TrimSpace(out) != "logged out" {
		t.Fatalf("unexpected logout output %q", out)
	}
	if out := h.mustRun("whoami"); strings.TrimSpace(out) != "not logged in" {
		t.Fatalf("expected no session, got %q", out)
	}
	if out := h.mustRun("route", "/dashboard/admin"); !strings.HasPrefix(out, "redirect_login -> /login") {
		t.Fatalf("unexpected route output %q", out)
	}
}

func TestRouteMatchesWholeSegments(t *testing.T) {
	h := newHarness(t)
	h.mustRun("login", "-email", "admin@boikhata.test", "-password", "admin-pass")

	cases := []struct {
		path string
		want string
	}{
		{"/dashboard/admin", "permitted"},
		{"/dashboard/admin/", "permitted"},
		{"/dashboard/administrator", "permitted"},
		{"/dashboard/user", "redirect_login -> /login"},
		{"/dashboard/user/orders", "redirect_login -> /login"},
		{"/dashboard/users", "permitted"},
	}
	for _, tc := range cases {
		out := strings.TrimSpace(h.mustRun("route", tc.path))
		if !strings.HasPrefix(out, tc.want) {
			t.Fatalf("route %s: got %q, want %q", tc.path, out, tc.want)
		}
	}
}

func TestUnder(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/dashboard/admin", true},
		{"/dashboard/admin/products", true},
		{"/dashboard/administrator", false},
		{"/dashboard", false},
	}
	for _, tc := range cases {
		if got := under(tc.path, "/dashboard/admin"); got != tc.want {
			t.Fatalf("under(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestProductCommands(t *testing.T) {
	h := newHarness(t)
	h.mustRun("login", "-email", "admin@boikhata.test", "-password", "admin-pass")

	var page catalog.Page
	if err := json.Unmarshal([]byte(h.mustRun("-json", "products", "list", "-sort", "lowToHigh")), &page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(page.Result) != 2 || page.Result[0].Name != "Gel Pen" {
		t.Fatalf("unexpected page %+v", page)
	}

	var created catalog.Product
	out := h.mustRun("-json", "products", "add",
		"-name", "Sketchbook", "-photo", "https://cdn.boikhata.test/sb.jpg", "-brand", "Camlin",
		"-price", "6", "-category", "art supplies", "-quantity", "4")
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Category != catalog.CategoryArtSupplies {
		t.Fatalf("unexpected created product %+v", created)
	}

	out = h.mustRun("products", "update", created.ID, "-description", "A4 sketchbook, 120 gsm", "-price", "7")
	if !strings.Contains(out, "7.00") {
		t.Fatalf("unexpected update output %q", out)
	}

	if out := h.mustRun("products", "delete", created.ID); strings.TrimSpace(out) != "deleted "+created.ID {
		t.Fatalf("unexpected delete output %q", out)
	}
	if code, _, errOut := h.run("products", "get", created.ID); code != 1 || !strings.Contains(errOut, "not found") {
		t.Fatalf("expected not found, got %d %q", code, errOut)
	}
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)

	cases := [][]string{
		{},
		{"frobnicate"},
		{"login"},
		{"route"},
		{"products"},
		{"products", "explode"},
	}
	for _, args := range cases {
		if code, _, _ := h.run(args...); code != 2 {
			t.Fatalf("%v: expected exit 2, got %d", args, code)
		}
	}
}

func TestLoginFailureExitsNonZero(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run("login", "-email", "admin@boikhata.test", "-password", "wrong-pass")
	if code != 1 || !strings.Contains(errOut, "invalid credentials") {
		t.Fatalf("expected credential failure, got %d %q", code, errOut)
	}
}
