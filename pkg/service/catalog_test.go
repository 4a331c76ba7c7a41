package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/repository/memory"
	"github.com/example/localdelivery/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedCatalog(t *testing.T, store *memory.Store) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []models.Product{
		{Name: "Basmati Rice", Description: "long grain", Price: 120, Category: "grocery", IsActive: true},
		{Name: "Toor Dal", Description: "split pigeon peas", Price: 150, Category: "grocery", IsActive: true},
		{Name: "Green Tea", Description: "fresh leaves", Price: 90, Category: "beverages", IsActive: true},
		{Name: "Cold Coffee", Description: "ready to drink", Price: 60, Category: "beverages", IsActive: false},
		{Name: "Soap", Description: "neem", Price: 35, Category: "personal care", IsActive: true},
	}
	for i := range products {
		products[i].CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Products().Create(context.Background(), &products[i]))
	}
}

func TestCatalogListFilters(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	catalog := service.NewCatalog(store.Products(), nil, zap.NewNop())
	ctx := context.Background()

	page, err := catalog.List(ctx, service.ListParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Page)
	assert.EqualValues(t, service.DefaultPageSize, page.Limit)
	assert.EqualValues(t, 4, page.Total)
	assert.Equal(t, "Soap", page.Products[0].Name)

	page, err = catalog.List(ctx, service.ListParams{Category: "beverages"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Green Tea", page.Products[0].Name)

	page, err = catalog.List(ctx, service.ListParams{Search: "PIGEON"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Toor Dal", page.Products[0].Name)

	page, err = catalog.List(ctx, service.ListParams{MinPrice: "50", MaxPrice: "130", Sort: "price_asc"})
	require.NoError(t, err)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "Green Tea", page.Products[0].Name)
	assert.Equal(t, "Basmati Rice", page.Products[1].Name)

	page, err = catalog.List(ctx, service.ListParams{Sort: "price_desc", Page: "2", Limit: "3"})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Soap", page.Products[0].Name)

	page, err = catalog.List(ctx, service.ListParams{Limit: "5000", Page: "-1"})
	require.NoError(t, err)
	assert.EqualValues(t, service.MaxPageSize, page.Limit)
	assert.EqualValues(t, 1, page.Page)
}

func TestCatalogListRejectsBadParams(t *testing.T) {
	catalog := service.NewCatalog(memory.New().Products(), nil, zap.NewNop())
	ctx := context.Background()

	for _, params := range []service.ListParams{
		{Sort: "popular"},
		{MinPrice: "abc"},
		{MaxPrice: "-5"},
		{MinPrice: "100", MaxPrice: "10"},
	} {
		_, err := catalog.List(ctx, params)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err), "%+v", params)
	}
}

func TestCatalogProductLifecycle(t *testing.T) {
	store := memory.New()
	catalog := service.NewCatalog(store.Products(), nil, zap.NewNop())
	ctx := context.Background()
	price := 49.999

	_, err := catalog.CreateProduct(ctx, service.ProductInput{Name: "Atta", Category: "grocery"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	_, err = catalog.CreateProduct(ctx, service.ProductInput{Name: "Atta", Price: &price, Stock: -1, Category: "grocery"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	p, err := catalog.CreateProduct(ctx, service.ProductInput{Name: " Atta ", Price: &price, Category: "grocery", Stock: 4})
	require.NoError(t, err)
	assert.Equal(t, "Atta", p.Name)
	assert.Equal(t, 50.0, p.Price)
	assert.True(t, p.IsActive)

	inactive := false
	updated, err := catalog.UpdateProduct(ctx, p.ID.Hex(), service.ProductUpdate{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	_, err = catalog.GetProduct(ctx, p.ID.Hex())
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	all, err := catalog.AdminList(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	empty := ""
	_, err = catalog.UpdateProduct(ctx, p.ID.Hex(), service.ProductUpdate{Name: &empty})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	require.NoError(t, catalog.DeleteProduct(ctx, p.ID.Hex()))
	assert.Equal(t, errs.KindNotFound, errs.KindOf(catalog.DeleteProduct(ctx, p.ID.Hex())))
}

func TestCategoriesCachedAndInvalidated(t *testing.T) {
	store := memory.New()
	seedCatalog(t, store)
	cache := memory.NewCache()
	catalog := service.NewCatalog(store.Products(), cache, zap.NewNop())
	ctx := context.Background()

	counts, err := catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{
		{Category: "beverages", Count: 1},
		{Category: "grocery", Count: 2},
		{Category: "personal care", Count: 1},
	}, counts)

	cached, err := cache.GetCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, counts, cached)

	price := 10.0
	_, err = catalog.CreateProduct(ctx, service.ProductInput{Name: "Salt", Price: &price, Category: "grocery"})
	require.NoError(t, err)

	cached, err = cache.GetCategories(ctx)
	require.NoError(t, err)
	assert.Nil(t, cached)

	counts, err = catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Contains(t, counts, models.CategoryCount{Category: "grocery", Count: 3})
}
