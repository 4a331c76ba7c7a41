package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 24
	MaxPageSize     = 200
	maxProductName  = 120
)

type ProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	ImageURL    string   `json:"imageUrl"`
	Category    string   `json:"category"`
	Stock       int      `json:"stock"`
	IsActive    *bool    `json:"isActive"`
}

// ListParams are the raw query-string values of a catalog listing.
type ListParams struct {
	Category string
	Search   string
	MinPrice string
	MaxPrice string
	Sort     string
	Page     string
	Limit    string
}

type ProductPage struct {
	Page     int64            `json:"page"`
	Limit    int64            `json:"limit"`
	Total    int64            `json:"total"`
	Products []models.Product `json:"products"`
}

type Catalog struct {
	products ProductStore
	cache    CategoryCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewCatalog builds the catalog service. cache may be nil.
func NewCatalog(products ProductStore, cache CategoryCache, logger *zap.Logger) *Catalog {
	return &Catalog{products: products, cache: cache, logger: logger, now: time.Now}
}

func (c *Catalog) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Price == nil {
		return nil, errs.Validation("price is required")
	}
	now := c.now()
	p := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       *in.Price,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Category:    strings.TrimSpace(in.Category),
		Stock:       in.Stock,
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.Price = money(p.Price).InexactFloat64()

	if err := c.products.Create(ctx, p); err != nil {
		return nil, err
	}
	c.invalidateCategories(ctx)
	return p, nil
}

func (c *Catalog) UpdateProduct(ctx context.Context, rawID string, u ProductUpdate) (*models.Product, error) {
	id, err := parseID(rawID, "product")
	if err != nil {
		return nil, err
	}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		u.Name = &name
	}
	if u.Category != nil {
		category := strings.TrimSpace(*u.Category)
		u.Category = &category
	}
	if u.Price != nil {
		price := money(*u.Price).InexactFloat64()
		u.Price = &price
	}
	if err := validateProductUpdate(u); err != nil {
		return nil, err
	}

	p, err := c.products.Update(ctx, id, u)
	if err != nil {
		return nil, err
	}
	c.invalidateCategories(ctx)
	return p, nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, rawID string) error {
	id, err := parseID(rawID, "product")
	if err != nil {
		return err
	}
	if err := c.products.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidateCategories(ctx)
	return nil
}

func (c *Catalog) GetProduct(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := parseID(rawID, "product")
	if err != nil {
		return nil, err
	}
	p, err := c.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errs.NotFound("product")
	}
	return p, nil
}

// List is the storefront listing: active products only.
func (c *Catalog) List(ctx context.Context, params ListParams) (*ProductPage, error) {
	q, page, err := buildProductQuery(params)
	if err != nil {
		return nil, err
	}
	q.ActiveOnly = true

	products, total, err := c.products.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return &ProductPage{Page: page, Limit: q.Limit, Total: total, Products: products}, nil
}

// AdminList returns every product, newest first.
func (c *Catalog) AdminList(ctx context.Context) ([]models.Product, error) {
	products, _, err := c.products.List(ctx, ProductQuery{Sort: SortNewest})
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// Categories counts active products per category, served from cache when
// one is configured. Cache failures fall through to the store.
func (c *Catalog) Categories(ctx context.Context) ([]models.CategoryCount, error) {
	if c.cache != nil {
		cached, err := c.cache.GetCategories(ctx)
		if err != nil {
			c.logger.Warn("Category cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	counts, err := c.products.CategoryCounts(ctx)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = []models.CategoryCount{}
	}
	if c.cache != nil {
		if err := c.cache.SetCategories(ctx, counts); err != nil {
			c.logger.Warn("Category cache write failed", zap.Error(err))
		}
	}
	return counts, nil
}

func (c *Catalog) invalidateCategories(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateCategories(ctx); err != nil {
		c.logger.Warn("Category cache invalidation failed", zap.Error(err))
	}
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return errs.Validation("name is required")
	case len(p.Name) > maxProductName:
		return errs.Validation("name must be at most %d characters", maxProductName)
	case p.Price < 0:
		return errs.Validation("price must be non-negative")
	case p.Category == "":
		return errs.Validation("category is required")
	case p.Stock < 0:
		return errs.Validation("stock must be non-negative")
	}
	return nil
}

func validateProductUpdate(u ProductUpdate) error {
	switch {
	case u.Name != nil && *u.Name == "":
		return errs.Validation("name is required")
	case u.Name != nil && len(*u.Name) > maxProductName:
		return errs.Validation("name must be at most %d characters", maxProductName)
	case u.Price != nil && *u.Price < 0:
		return errs.Validation("price must be non-negative")
	case u.Category != nil && *u.Category == "":
		return errs.Validation("category is required")
	case u.Stock != nil && *u.Stock < 0:
		return errs.Validation("stock must be non-negative")
	}
	return nil
}

func buildProductQuery(p ListParams) (ProductQuery, int64, error) {
	q := ProductQuery{
		Category: strings.TrimSpace(p.Category),
		Search:   strings.TrimSpace(p.Search),
	}

	switch ProductSort(p.Sort) {
	case "", SortNewest:
		q.Sort = SortNewest
	case SortPriceAsc, SortPriceDesc:
		q.Sort = ProductSort(p.Sort)
	default:
		return q, 0, errs.Validation("sort must be one of newest, price_asc, price_desc")
	}

	var err error
	if q.MinPrice, err = parsePrice("min", p.MinPrice); err != nil {
		return q, 0, err
	}
	if q.MaxPrice, err = parsePrice("max", p.MaxPrice); err != nil {
		return q, 0, err
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return q, 0, errs.Validation("min must not exceed max")
	}

	page := parsePositive(p.Page, 1)
	limit := parsePositive(p.Limit, DefaultPageSize)
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	q.Limit = limit
	q.Skip = (page - 1) * limit
	return q, page, nil
}

func parsePrice(field, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return nil, errs.Validation("%s must be a non-negative number", field)
	}
	return &v, nil
}

// parsePositive falls back to def for absent, malformed or non-positive input.
func parsePositive(raw string, def int64) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}
