package catalog

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Sort directions used by the list endpoint.
const (
	SortNewest = -1
	SortOldest = 1

	PriceLowToHigh = 1
	PriceHighToLow = -1
)

// Sort options offered by the product list.
const (
	SortOptionNewest    = "newest"
	SortOptionOldest    = "oldest"
	SortOptionLowToHigh = "lowToHigh"
	SortOptionHighToLow = "highToLow"
)

// ListParams filters and orders a product listing. Zero fields are omitted from the query.
type ListParams struct {
	Page        int
	Limit       int
	SearchQuery string
	// Sort orders by creation time: SortNewest or SortOldest.
	Sort int
	// PriceSort orders by price: PriceLowToHigh or PriceHighToLow.
	PriceSort  int
	MinPrice   *float64
	MaxPrice   *float64
	Categories []Category
}

// DefaultListParams is the first page of ten, newest first.
func DefaultListParams() ListParams {
	return ListParams{Page: 1, Limit: 10, Sort: SortNewest}
}

// ApplySort sets Sort and PriceSort from a sort option. A price option keeps newest-first as
// the secondary order.
func (p *ListParams) ApplySort(option string) error {
	switch option {
	case SortOptionNewest:
		p.Sort, p.PriceSort = SortNewest, 0
	case SortOptionOldest:
		p.Sort, p.PriceSort = SortOldest, 0
	case SortOptionLowToHigh:
		p.Sort, p.PriceSort = SortNewest, PriceLowToHigh
	case SortOptionHighToLow:
		p.Sort, p.PriceSort = SortNewest, PriceHighToLow
	default:
		return fmt.Errorf("unknown sort option %q", option)
	}
	return nil
}

// SortOption reports the option matching the current Sort and PriceSort.
func (p ListParams) SortOption() string {
	switch {
	case p.PriceSort == PriceLowToHigh:
		return SortOptionLowToHigh
	case p.PriceSort == PriceHighToLow:
		return SortOptionHighToLow
	case p.Sort == SortOldest:
		return SortOptionOldest
	default:
		return SortOptionNewest
	}
}

// ToggleCategory adds c to the filter, or removes it when already present.
func (p *ListParams) ToggleCategory(c Category) {
	for i, existing := range p.Categories {
		if existing == c {
			p.Categories = append(p.Categories[:i:i], p.Categories[i+1:]...)
			return
		}
	}
	p.Categories = append(p.Categories, c)
}

// Values encodes the params the way the list endpoint expects them; categories are sent as
// one comma separated value.
func (p ListParams) Values() url.Values {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if s := strings.TrimSpace(p.SearchQuery); s != "" {
		q.Set("searchQuery", s)
	}
	if p.Sort != 0 {
		q.Set("sort", strconv.Itoa(p.Sort))
	}
	if p.PriceSort != 0 {
		q.Set("priceSort", strconv.Itoa(p.PriceSort))
	}
	if p.MinPrice != nil {
		q.Set("minPrice", formatPrice(*p.MinPrice))
	}
	if p.MaxPrice != nil {
		q.Set("maxPrice", formatPrice(*p.MaxPrice))
	}
	if len(p.Categories) > 0 {
		names := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			names = append(names, string(c))
		}
		q.Set("categories", strings.Join(names, ","))
	}
	return q
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
