package gateway

import (
	"net/http"

	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/service"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) listProducts(c *gin.Context) {
	page, err := g.services.Catalog.List(c.Request.Context(), service.ListParams{
		Category: c.Query("category"),
		Search:   firstQuery(c, "q", "search"),
		MinPrice: firstQuery(c, "min", "minPrice"),
		MaxPrice: firstQuery(c, "max", "maxPrice"),
		Sort:     c.Query("sort"),
		Page:     c.Query("page"),
		Limit:    c.Query("limit"),
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"page":     page.Page,
		"limit":    page.Limit,
		"total":    page.Total,
		"products": page.Products,
	})
}

// firstQuery returns the first non-empty query value among keys.
func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}

func (g *Gateway) getProduct(c *gin.Context) {
	product, err := g.services.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

func (g *Gateway) listCategories(c *gin.Context) {
	categories, err := g.services.Catalog.Categories(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"categories": categories})
}

func (g *Gateway) adminListProducts(c *gin.Context) {
	products, err := g.services.Catalog.AdminList(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"products": products})
}

func (g *Gateway) createProduct(c *gin.Context) {
	var req service.ProductInput
	if !g.bind(c, &req) {
		return
	}

	product, err := g.services.Catalog.CreateProduct(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"product": product})
}

func (g *Gateway) updateProduct(c *gin.Context) {
	var req service.ProductUpdate
	if !g.bind(c, &req) {
		return
	}

	product, err := g.services.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"product": product})
}

func (g *Gateway) deleteProduct(c *gin.Context) {
	if err := g.services.Catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Product deleted"})
}

func (g *Gateway) checkServiceArea(c *gin.Context) {
	d, err := g.services.Areas.Check(c.Request.Context(), c.Param("pincode"))
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"pincode":     d.Pincode,
		"serviceable": d.Serviceable,
		"deliveryFee": d.DeliveryFee,
		"areaName":    d.AreaName,
	})
}

func (g *Gateway) listServiceAreas(c *gin.Context) {
	areas, err := g.services.Areas.List(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	if areas == nil {
		areas = []models.ServiceArea{}
	}
	respond(c, http.StatusOK, gin.H{"areas": areas})
}

func (g *Gateway) upsertServiceArea(c *gin.Context) {
	var req service.ServiceAreaInput
	if !g.bind(c, &req) {
		return
	}

	area, err := g.services.Areas.Upsert(c.Request.Context(), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"serviceArea": area})
}

func (g *Gateway) deleteServiceArea(c *gin.Context) {
	if err := g.services.Areas.Delete(c.Request.Context(), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Service area deleted"})
}
