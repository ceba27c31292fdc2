package catalog

import (
	"context"
	"testing"

	"github.com/boikhata/khata/storage"
)

func TestCacheOperations(t *testing.T) {
	c := NewCache(storage.NewMemory(), "")

	pen := validProduct()
	pen.ID = "p1"
	paint := validProduct()
	paint.ID = "p2"
	paint.Category = CategoryArtSupplies

	c.Set([]Product{pen})
	c.Add(paint)
	if c.Len() != 2 {
		t.Fatalf("expected 2 products, got %d", c.Len())
	}

	pen.Price = 15
	if !c.Update(pen) {
		t.Fatal("expected update to find p1")
	}
	if got, _ := c.ByID("p1"); got.Price != 15 {
		t.Fatalf("update not applied, price %v", got.Price)
	}
	if c.Update(Product{ID: "missing"}) {
		t.Fatal("update of a missing id must report false")
	}

	if got := c.ByCategory(CategoryArtSupplies); len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("unexpected category filter %v", got)
	}

	c.Delete("p1")
	if _, ok := c.ByID("p1"); ok {
		t.Fatal("expected p1 deleted")
	}
	if all := c.All(); len(all) != 1 || all[0].ID != "p2" {
		t.Fatalf("unexpected remaining products %v", all)
	}
}

func TestCachePersistence(t *testing.T) {
	backend := storage.NewMemory()
	ctx := context.Background()

	first := NewCache(backend, "ns:product")
	p := validProduct()
	p.ID = "p1"
	first.Set([]Product{p})
	if err := first.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := NewCache(backend, "ns:product")
	if err := second.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := second.ByID("p1"); !ok || got.Name != p.Name || got.Category != p.Category {
		t.Fatalf("unexpected loaded product %+v", got)
	}

	second.Delete("p1")
	if err := second.Save(ctx); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	if backend.Keys() != 0 {
		t.Fatal("an empty cache must delete its key")
	}

	third := NewCache(backend, "ns:product")
	if err := third.Load(ctx); err != nil || third.Len() != 0 {
		t.Fatalf("expected empty cache from missing key, got %d (%v)", third.Len(), err)
	}
}

func TestCacheLoadRejectsCorruptData(t *testing.T) {
	backend := storage.NewMemory()
	_ = backend.Save(context.Background(), CacheKey, []byte("not json"))

	if err := NewCache(backend, "").Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCacheSetCopiesInput(t *testing.T) {
	c := NewCache(storage.NewMemory(), "")
	in := []Product{{ID: "p1", Name: "Pen"}}
	c.Set(in)
	in[0].Name = "changed"

	if got, _ := c.ByID("p1"); got.Name != "Pen" {
		t.Fatal("cache must not alias the caller's slice")
	}
}
