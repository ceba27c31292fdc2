package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/boikhata/khata"
)

const (
	productsPath = "/stationary-product/products"
	productPath  = "/stationary-product/product"
)

// ErrEmptyID is returned when a call needs a product id and none was given.
var ErrEmptyID = errors.New("product id is empty")

// Requester sends a request through the authenticated request layer. *khata.Client
// implements it.
type Requester interface {
	DoJSON(ctx context.Context, req khata.Request, out any) error
}

// Page is one page of a product listing.
type Page struct {
	Result     []Product `json:"result"`
	TotalPages int       `json:"totalPages"`
}

// Service calls the product endpoints. When a Cache is attached, successful calls keep it
// in step with the backend.
type Service struct {
	client Requester
	cache  *Cache
}

type ServiceOption func(*Service)

// WithCache keeps cache updated from every successful call.
func WithCache(cache *Cache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

func NewService(client Requester, opts ...ServiceOption) *Service {
	s := &Service{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the attached cache, or nil.
func (s *Service) Cache() *Cache {
	return s.cache
}

// List returns one page of products. The cache, when attached, is replaced with the page.
func (s *Service) List(ctx context.Context, params ListParams) (Page, error) {
	var env khata.APIResponse[Page]
	err := s.client.DoJSON(ctx, khata.Request{
		Method: http.MethodGet,
		Path:   productsPath,
		Query:  params.Values(),
	}, &env)
	if err != nil {
		return Page{}, err
	}
	if env.Data.TotalPages < 1 {
		env.Data.TotalPages = 1
	}
	if s.cache != nil {
		s.cache.Set(env.Data.Result)
	}
	return env.Data, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	path, err := productPathFor(id)
	if err != nil {
		return Product{}, err
	}

	var env khata.APIResponse[Product]
	if err := s.client.DoJSON(ctx, khata.Request{Method: http.MethodGet, Path: path}, &env); err != nil {
		return Product{}, err
	}
	return env.Data, nil
}

// Create validates p with the add-product rules and creates it. The returned product carries
// the id assigned by the backend.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	if err := p.ValidateNew(); err != nil {
		return Product{}, err
	}
	p.ID = ""
	p.CreatedAt, p.UpdatedAt = nil, nil

	var env khata.APIResponse[Product]
	if err := s.client.DoJSON(ctx, khata.Request{Method: http.MethodPost, Path: productPath, Body: p}, &env); err != nil {
		return Product{}, err
	}
	if !env.Success {
		return Product{}, fmt.Errorf("create product: %s", env.Message)
	}
	if s.cache != nil {
		s.cache.Add(env.Data)
	}
	return env.Data, nil
}

// Update validates p with the update-product rules and replaces product id.
func (s *Service) Update(ctx context.Context, id string, p Product) (Product, error) {
	path, err := productPathFor(id)
	if err != nil {
		return Product{}, err
	}
	if err := p.ValidateUpdate(); err != nil {
		return Product{}, err
	}
	p.ID = ""
	p.CreatedAt, p.UpdatedAt = nil, nil

	var env khata.APIResponse[Product]
	if err := s.client.DoJSON(ctx, khata.Request{Method: http.MethodPut, Path: path, Body: p}, &env); err != nil {
		return Product{}, err
	}
	if !env.Success {
		return Product{}, fmt.Errorf("update product: %s", env.Message)
	}
	if env.Data.ID == "" {
		env.Data.ID = id
	}
	if s.cache != nil {
		s.cache.Update(env.Data)
	}
	return env.Data, nil
}

// Delete removes product id.
func (s *Service) Delete(ctx context.Context, id string) error {
	path, err := productPathFor(id)
	if err != nil {
		return err
	}

	var env khata.APIResponse[struct{}]
	if err := s.client.DoJSON(ctx, khata.Request{Method: http.MethodDelete, Path: path}, &env); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Delete(id)
	}
	return nil
}

func productPathFor(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyID
	}
	return productPath + "/" + url.PathEscape(id), nil
}
