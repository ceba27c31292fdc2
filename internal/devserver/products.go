package devserver

import (
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/boikhata/khata/catalog"
)

type productPage struct {
	Result     []catalog.Product `json:"result"`
	TotalPages int               `json:"totalPages"`
}

func (s *Server) listProducts(c *gin.Context) {
	q, err := parseListQuery(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	matched := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if q.matches(p) {
			matched = append(matched, p)
		}
	}
	s.mu.Unlock()

	q.order(matched)

	totalPages := int(math.Ceil(float64(len(matched)) / float64(q.limit)))
	start := (q.page - 1) * q.limit
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+q.limit, len(matched))

	ok(c, http.StatusOK, "Products retrieved successfully", productPage{
		Result:     matched[start:end],
		TotalPages: totalPages,
	})
}

func (s *Server) getProduct(c *gin.Context) {
	s.mu.Lock()
	i := s.indexLocked(c.Param("id"))
	var p catalog.Product
	if i >= 0 {
		p = s.products[i]
	}
	s.mu.Unlock()

	if i < 0 {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	ok(c, http.StatusOK, "Product retrieved successfully", p)
}

func (s *Server) createProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "Invalid product payload")
		return
	}
	if err := p.ValidateNew(); err != nil {
		fail(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	s.mu.Lock()
	p = s.stampLocked(p, "")
	s.products = append(s.products, p)
	s.mu.Unlock()

	ok(c, http.StatusCreated, "Product created successfully", p)
}

func (s *Server) updateProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		fail(c, http.StatusBadRequest, "Invalid product payload")
		return
	}
	if err := p.ValidateUpdate(); err != nil {
		fail(c, http.StatusBadRequest, validationMessage(err))
		return
	}

	s.mu.Lock()
	i := s.indexLocked(c.Param("id"))
	if i >= 0 {
		p = s.stampLocked(p, s.products[i].ID)
		p.CreatedAt = s.products[i].CreatedAt
		s.products[i] = p
	}
	s.mu.Unlock()

	if i < 0 {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	ok(c, http.StatusOK, "Product updated successfully", p)
}

func (s *Server) deleteProduct(c *gin.Context) {
	s.mu.Lock()
	i := s.indexLocked(c.Param("id"))
	var removed catalog.Product
	if i >= 0 {
		removed = s.products[i]
		s.products = append(s.products[:i], s.products[i+1:]...)
	}
	s.mu.Unlock()

	if i < 0 {
		fail(c, http.StatusNotFound, "Product not found")
		return
	}
	ok(c, http.StatusOK, "Product deleted successfully", removed)
}

func (s *Server) indexLocked(id string) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// stampLocked sets the id and timestamps of p. An empty id gets a fresh uuid.
func (s *Server) stampLocked(p catalog.Product, id string) catalog.Product {
	now := s.now().UTC()
	if id == "" {
		id = p.ID
	}
	if id == "" {
		id = uuid.NewString()
	}
	p.ID = id
	if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	p.UpdatedAt = &now
	return p
}

func validationMessage(err error) string {
	var ve *catalog.ValidationError
	if errors.As(err, &ve) && len(ve.Fields) > 0 {
		return ve.Fields[0].Message
	}
	return err.Error()
}

type listQuery struct {
	page       int
	limit      int
	search     string
	sort       int
	priceSort  int
	minPrice   *float64
	maxPrice   *float64
	categories map[catalog.Category]bool
}

func parseListQuery(c *gin.Context) (listQuery, error) {
	q := listQuery{page: 1, limit: 10, sort: catalog.SortNewest}

	ints := []struct {
		name string
		dst  *int
	}{
		{"page", &q.page},
		{"limit", &q.limit},
		{"sort", &q.sort},
		{"priceSort", &q.priceSort},
	}
	for _, f := range ints {
		raw := c.Query(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return q, errors.New("invalid " + f.name)
		}
		*f.dst = v
	}
	if q.page < 1 || q.limit < 1 {
		return q, errors.New("page and limit must be positive")
	}

	prices := []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &q.minPrice},
		{"maxPrice", &q.maxPrice},
	}
	for _, f := range prices {
		raw := c.Query(f.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, errors.New("invalid " + f.name)
		}
		*f.dst = &v
	}

	q.search = strings.ToLower(strings.TrimSpace(c.Query("searchQuery")))
	if raw := c.Query("categories"); raw != "" {
		q.categories = map[catalog.Category]bool{}
		for _, name := range strings.Split(raw, ",") {
			q.categories[catalog.Category(strings.TrimSpace(name))] = true
		}
	}
	return q, nil
}

func (q listQuery) matches(p catalog.Product) bool {
	if q.search != "" {
		hay := strings.ToLower(p.Name + " " + p.Brand + " " + string(p.Category))
		if !strings.Contains(hay, q.search) {
			return false
		}
	}
	if q.minPrice != nil && p.Price < *q.minPrice {
		return false
	}
	if q.maxPrice != nil && p.Price > *q.maxPrice {
		return false
	}
	if q.categories != nil && !q.categories[p.Category] {
		return false
	}
	return true
}

// order sorts by price when priceSort is set, then by creation time.
func (q listQuery) order(products []catalog.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if q.priceSort != 0 && a.Price != b.Price {
			if q.priceSort > 0 {
				return a.Price < b.Price
			}
			return a.Price > b.Price
		}
		at, bt := created(a), created(b)
		if q.sort > 0 {
			return at.Before(bt)
		}
		return at.After(bt)
	})
}

func created(p catalog.Product) time.Time {
	if p.CreatedAt != nil {
		return *p.CreatedAt
	}
	return time.Time{}
}
