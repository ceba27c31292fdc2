package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/boikhata/khata/storage"
)

// CacheKey is the storage key the product cache is persisted under.
const CacheKey = "product"

// Cache is an ordered local copy of products, persisted as JSON in a storage backend.
// It is safe for concurrent use.
type Cache struct {
	backend storage.Backend
	key     string

	mu       sync.RWMutex
	products []Product
}

// NewCache returns an empty cache stored under key; CacheKey when key is empty.
func NewCache(backend storage.Backend, key string) *Cache {
	if key == "" {
		key = CacheKey
	}
	return &Cache{backend: backend, key: key}
}

// Set replaces every cached product.
func (c *Cache) Set(products []Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = append([]Product(nil), products...)
}

// Add appends p.
func (c *Cache) Add(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = append(c.products, p)
}

// Update replaces the product with p's id in place. It reports whether one was found.
func (c *Cache) Update(p Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.products {
		if c.products[i].ID == p.ID {
			c.products[i] = p
			return true
		}
	}
	return false
}

// Delete removes every product with id.
func (c *Cache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.products[:0]
	for _, p := range c.products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	c.products = kept
}

func (c *Cache) ByID(id string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

func (c *Cache) ByCategory(category Category) []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Product
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// All returns a copy of the cached products in order.
func (c *Cache) All() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Product(nil), c.products...)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Load replaces the cache with the persisted copy. A missing key leaves the cache empty.
func (c *Cache) Load(ctx context.Context) error {
	data, err := c.backend.Load(ctx, c.key)
	if errors.Is(err, storage.ErrNotFound) {
		c.Set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load product cache: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return fmt.Errorf("decode product cache: %w", err)
	}
	c.Set(products)
	return nil
}

// Save persists the cache. An empty cache deletes the key.
func (c *Cache) Save(ctx context.Context) error {
	products := c.All()
	if len(products) == 0 {
		return c.backend.Delete(ctx, c.key)
	}
	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("encode product cache: %w", err)
	}
	if err := c.backend.Save(ctx, c.key, data); err != nil {
		return fmt.Errorf("save product cache: %w", err)
	}
	return nil
}
