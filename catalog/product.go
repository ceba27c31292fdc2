package catalog

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Category is a product category accepted by the backend.
type Category string

const (
	CategoryWriting        Category = "Writing"
	CategoryOfficeSupplies Category = "Office Supplies"
	CategoryArtSupplies    Category = "Art Supplies"
	CategoryEducational    Category = "Educational"
	CategoryTechnology     Category = "Technology"
)

var categories = []Category{
	CategoryWriting,
	CategoryOfficeSupplies,
	CategoryArtSupplies,
	CategoryEducational,
	CategoryTechnology,
}

// Categories lists the accepted categories in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, known := range categories {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Product is a stationery product as the backend stores it.
type Product struct {
	ID          string     `json:"_id,omitempty"`
	Name        string     `json:"name"`
	Photo       string     `json:"photo"`
	Brand       string     `json:"brand"`
	Description string     `json:"description,omitempty"`
	Price       float64    `json:"price"`
	Category    Category   `json:"category"`
	Quantity    int        `json:"quantity"`
	InStock     bool       `json:"inStock"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// ErrInvalidProduct is matched by every ValidationError.
var ErrInvalidProduct = errors.New("invalid product")

// FieldError is one rejected field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every rejected field of a product.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidProduct
}

// Field returns the message for field, if it was rejected.
func (e *ValidationError) Field(field string) (string, bool) {
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message, true
		}
	}
	return "", false
}

// ValidateNew applies the add-product rules: price strictly positive, description optional,
// any non-empty category.
func (p Product) ValidateNew() error {
	v := p.common()
	if p.Price <= 0 {
		v.add("price", "Price must be positive")
	}
	if strings.TrimSpace(string(p.Category)) == "" {
		v.add("category", "Category is required")
	}
	return v.err()
}

// ValidateUpdate applies the update-product rules: price may be zero, description of at least
// ten characters, category from the known set.
func (p Product) ValidateUpdate() error {
	v := p.common()
	if p.Price < 0 {
		v.add("price", "Price must be positive")
	}
	if len([]rune(strings.TrimSpace(p.Description))) < 10 {
		v.add("description", "Description is required")
	}
	if !p.Category.Valid() {
		v.add("category", "Category is invalid")
	}
	return v.err()
}

func (p Product) common() *validator {
	v := &validator{}
	if strings.TrimSpace(p.Name) == "" {
		v.add("name", "Product name is required")
	}
	if strings.TrimSpace(p.Photo) == "" {
		v.add("photo", "Photo URL is required")
	} else if u, err := url.Parse(p.Photo); err != nil || !u.IsAbs() || u.Host == "" {
		v.add("photo", "Invalid URL")
	}
	if strings.TrimSpace(p.Brand) == "" {
		v.add("brand", "Brand is required")
	}
	if p.Quantity < 0 {
		v.add("quantity", "Quantity must be positive")
	}
	return v
}

type validator struct {
	fields []FieldError
}

func (v *validator) add(field, msg string) {
	v.fields = append(v.fields, FieldError{Field: field, Message: msg})
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}
