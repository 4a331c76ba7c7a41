package gateway

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var exportHeaders = []string{
	"ID", "Name", "Category", "Price", "Stock", "Active",
	"ImageURL", "Description", "CreatedAt", "UpdatedAt",
}

func (g *Gateway) exportProducts(c *gin.Context) {
	products, err := g.services.Catalog.AdminList(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}

	file, err := productWorkbook(products)
	if err != nil {
		g.fail(c, errs.Unexpected(err, "build product export"))
		return
	}

	// Render fully before writing so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := file.Write(&buf); err != nil {
		g.fail(c, errs.Unexpected(err, "write product export"))
		return
	}

	filename := fmt.Sprintf("products-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func productWorkbook(products []models.Product) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID.Hex())
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetFloat(p.Price)
		row.AddCell().SetInt(p.Stock)
		row.AddCell().SetBool(p.IsActive)
		row.AddCell().SetValue(p.ImageURL)
		row.AddCell().SetValue(p.Description)
		row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return file, nil
}
