package devserver

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boikhata/khata"
	"github.com/boikhata/khata/catalog"
	"github.com/boikhata/khata/permission"
	"github.com/boikhata/khata/storage"
)

func newClient(t *testing.T, ts *httptest.Server, backend storage.Backend) *khata.Client {
	t.Helper()

	cfg := khata.DefaultConfig()
	cfg.BaseURL = ts.URL + "/api/v1"
	cfg.Auth.LogoutPath = "/auth/logout"
	cfg.Transport.Timeout = 5 * time.Second

	c, err := khata.New().WithConfig(cfg).WithStorage(backend).Build()
	if err != nil {
		t.Fatalf("build client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func clientContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClientCatalogRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t)
	seedCatalog(srv)
	ctx := clientContext(t)

	backend := storage.NewMemory()
	c := newClient(t, ts, backend)
	claims, err := c.Login(ctx, adminEmail, secret)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if claims.Role != permission.RoleAdmin {
		t.Fatalf("unexpected role %s", claims.Role)
	}

	cache := catalog.NewCache(backend, c.StorageKey(catalog.CacheKey))
	svc := catalog.NewService(c, catalog.WithCache(cache))

	params := catalog.DefaultListParams()
	params.Categories = []catalog.Category{catalog.CategoryWriting}
	page, err := svc.List(ctx, params)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Result) != 2 || cache.Len() != 2 {
		t.Fatalf("expected two writing products, got %d (cache %d)", len(page.Result), cache.Len())
	}

	created, err := svc.Create(ctx, catalog.Product{
		Name: "Sketchbook", Photo: "https://cdn.boikhata.test/sb.jpg", Brand: "Camlin",
		Price: 6, Category: catalog.CategoryArtSupplies, Quantity: 12, InStock: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := cache.ByID(created.ID); !ok {
		t.Fatal("expected the created product in the cache")
	}

	created.Description = "A4 sketchbook, 120 gsm"
	if _, err := svc.Update(ctx, created.ID, created); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, khata.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientRefreshesAfterForcedUnauthorized(t *testing.T) {
	srv, ts := newTestServer(t)
	seedCatalog(srv)
	ctx := clientContext(t)

	c := newClient(t, ts, storage.NewMemory())
	if _, err := c.Login(ctx, userEmail, secret); err != nil {
		t.Fatalf("login: %v", err)
	}
	srv.Faults().Unauthorized(1)
	if _, err := catalog.NewService(c).List(ctx, catalog.DefaultListParams()); err != nil {
		t.Fatalf("list after forced 401: %v", err)
	}

	if srv.Faults().RefreshCalls() != 1 {
		t.Fatalf("expected one refresh, got %d", srv.Faults().RefreshCalls())
	}
	if c.Metrics().Value(khata.MetricRetry) != 1 {
		t.Fatal("expected one retry")
	}
	if !c.Session().LoggedIn() || c.Session().Token == "" {
		t.Fatal("expected the session to survive the refresh")
	}
}

func TestClientSessionEndsWhenRefreshFails(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx := clientContext(t)

	c := newClient(t, ts, storage.NewMemory())
	if _, err := c.Login(ctx, userEmail, secret); err != nil {
		t.Fatalf("login: %v", err)
	}

	srv.Faults().Unauthorized(1)
	srv.Faults().FailRefresh(true)
	_, err := catalog.NewService(c).List(ctx, catalog.DefaultListParams())
	if !errors.Is(err, khata.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if c.Session().LoggedIn() {
		t.Fatal("expected the session to be cleared")
	}
}

func TestClientUserCannotMutate(t *testing.T) {
	srv, ts := newTestServer(t)
	seeded := seedCatalog(srv)
	ctx := clientContext(t)

	c := newClient(t, ts, storage.NewMemory())
	if _, err := c.Login(ctx, userEmail, secret); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := catalog.NewService(c).Delete(ctx, seeded[0].ID); !errors.Is(err, khata.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if !c.Session().LoggedIn() {
		t.Fatal("a 403 must not end the session")
	}
}

func TestClientLoginRejectsBadPassword(t *testing.T) {
	_, ts := newTestServer(t)
	c := newClient(t, ts, storage.NewMemory())

	if _, err := c.Login(clientContext(t), userEmail, "wrong-pass"); !errors.Is(err, khata.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestClientLogoutRevokesRefresh(t *testing.T) {
	srv, ts := newTestServer(t)
	ctx := clientContext(t)

	c := newClient(t, ts, storage.NewMemory())
	if _, err := c.Login(ctx, userEmail, secret); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if c.Session().LoggedIn() {
		t.Fatal("expected no session after logout")
	}

	// With no access token the request is rejected and the refresh has no cookie to use.
	_, err := catalog.NewService(c).List(ctx, catalog.DefaultListParams())
	if !errors.Is(err, khata.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if srv.Faults().RefreshCalls() != 1 {
		t.Fatalf("expected one refresh attempt, got %d", srv.Faults().RefreshCalls())
	}
}
