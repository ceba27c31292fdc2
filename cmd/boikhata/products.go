package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/boikhata/khata/catalog"
)

func cmdProducts(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cache := catalog.NewCache(a.client.Storage(), a.client.StorageKey(catalog.CacheKey))
	if err := cache.Load(ctx); err != nil {
		a.log.Warn().Err(err).Msg("product cache unreadable, starting empty")
	}
	svc := catalog.NewService(a.client, catalog.WithCache(cache))

	var err error
	switch args[0] {
	case "list":
		err = productsList(ctx, a, svc, args[1:])
	case "get":
		err = productsGet(ctx, a, svc, args[1:])
	case "add":
		err = productsAdd(ctx, a, svc, args[1:])
	case "update":
		err = productsUpdate(ctx, a, svc, args[1:])
	case "delete":
		err = productsDelete(ctx, a, svc, args[1:])
	default:
		return errUsage
	}
	if err != nil {
		return err
	}
	return cache.Save(ctx)
}

func productsList(ctx context.Context, a *app, svc *catalog.Service, args []string) error {
	params := catalog.DefaultListParams()

	fs := subFlags("products list", a.out)
	fs.IntVar(&params.Page, "page", params.Page, "page number")
	fs.IntVar(&params.Limit, "limit", params.Limit, "page size")
	fs.StringVar(&params.SearchQuery, "search", "", "search name, brand or category")
	sortOpt := fs.String("sort", catalog.SortOptionNewest, "newest, oldest, lowToHigh or highToLow")
	cats := fs.String("categories", "", "comma separated categories")
	minPrice := optionalFloat(fs, "min-price", "lowest price")
	maxPrice := optionalFloat(fs, "max-price", "highest price")
	if err := parseSub(fs, args); err != nil {
		return err
	}

	if err := params.ApplySort(*sortOpt); err != nil {
		return err
	}
	for _, name := range strings.Split(*cats, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c, ok := catalog.ParseCategory(name)
		if !ok {
			return fmt.Errorf("unknown category %q", name)
		}
		params.ToggleCategory(c)
	}
	params.MinPrice, params.MaxPrice = minPrice.ptr(), maxPrice.ptr()

	page, err := svc.List(ctx, params)
	if err != nil {
		return err
	}
	if a.json {
		return a.printJSON(page)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBRAND\tCATEGORY\tPRICE\tQTY")
	for _, p := range page.Result {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Brand, p.Category, p.Price, p.Quantity)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "page %d of %d\n", params.Page, page.TotalPages)
	return nil
}

func productsGet(ctx context.Context, a *app, svc *catalog.Service, args []string) error {
	id, err := oneArg(args)
	if err != nil {
		return err
	}
	p, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	return printProduct(a, p)
}

func productsAdd(ctx context.Context, a *app, svc *catalog.Service, args []string) error {
	var p catalog.Product
	fs := subFlags("products add", a.out)
	bindProduct(fs, &p)
	if err := parseSub(fs, args); err != nil {
		return err
	}

	created, err := svc.Create(ctx, p)
	if err != nil {
		return err
	}
	return printProduct(a, created)
}

// productsUpdate fetches the product and overwrites only the flags that were given.
func productsUpdate(ctx context.Context, a *app, svc *catalog.Service, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return errUsage
	}
	id := args[0]

	p, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	fs := subFlags("products update", a.out)
	bindProduct(fs, &p)
	if err := parseSub(fs, args[1:]); err != nil {
		return err
	}

	updated, err := svc.Update(ctx, id, p)
	if err != nil {
		return err
	}
	return printProduct(a, updated)
}

func productsDelete(ctx context.Context, a *app, svc *catalog.Service, args []string) error {
	id, err := oneArg(args)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", id)
	return nil
}

func bindProduct(fs *flag.FlagSet, p *catalog.Product) {
	fs.StringVar(&p.Name, "name", p.Name, "product name")
	fs.StringVar(&p.Photo, "photo", p.Photo, "absolute photo URL")
	fs.StringVar(&p.Brand, "brand", p.Brand, "brand")
	fs.StringVar(&p.Description, "description", p.Description, "description")
	fs.Float64Var(&p.Price, "price", p.Price, "price")
	fs.IntVar(&p.Quantity, "quantity", p.Quantity, "quantity in stock")
	fs.BoolVar(&p.InStock, "in-stock", p.InStock, "whether the product is in stock")
	fs.Func("category", "category: "+categoryList(), func(s string) error {
		if c, ok := catalog.ParseCategory(s); ok {
			p.Category = c
			return nil
		}
		p.Category = catalog.Category(strings.TrimSpace(s))
		return nil
	})
}

func categoryList() string {
	names := make([]string, 0, len(catalog.Categories()))
	for _, c := range catalog.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func printProduct(a *app, p catalog.Product) error {
	if a.json {
		return a.printJSON(p)
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", p.ID)
	fmt.Fprintf(tw, "name\t%s\n", p.Name)
	fmt.Fprintf(tw, "brand\t%s\n", p.Brand)
	fmt.Fprintf(tw, "category\t%s\n", p.Category)
	fmt.Fprintf(tw, "price\t%.2f\n", p.Price)
	fmt.Fprintf(tw, "quantity\t%d\n", p.Quantity)
	fmt.Fprintf(tw, "in stock\t%t\n", p.InStock)
	if p.Description != "" {
		fmt.Fprintf(tw, "description\t%s\n", p.Description)
	}
	return tw.Flush()
}

// floatFlag records whether it was set so an explicit zero is kept.
type floatFlag struct {
	value float64
	set   bool
}

func optionalFloat(fs *flag.FlagSet, name, usage string) *floatFlag {
	f := &floatFlag{}
	fs.Func(name, usage, func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		f.value, f.set = v, true
		return nil
	})
	return f
}

func (f *floatFlag) ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}
