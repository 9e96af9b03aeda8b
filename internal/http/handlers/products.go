package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"ethioshop.com/app/internal/http/middleware"
	"ethioshop.com/app/internal/modules/products"
	"ethioshop.com/app/internal/shared/apperr"
)

type ProductsHandler struct {
	repo products.Repository
}

func NewProductsHandler(repo products.Repository) *ProductsHandler {
	return &ProductsHandler{repo: repo}
}

// GET /products?page&limit&search&vendorId
func (h *ProductsHandler) List(c *gin.Context) {
	res, err := h.repo.ListActive(c.Request.Context(), products.ListParams{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("limit"), 12),
		Query:    strings.TrimSpace(c.Query("search")),
		VendorID: strings.TrimSpace(c.Query("vendorId")),
	})
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	out := make([]productDTO, 0, len(res.Items))
	for _, p := range res.Items {
		out = append(out, newProductDTO(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"products": out,
		"pagination": pagination{
			Page:  res.Page,
			Limit: res.Size,
			Total: res.Total,
			Pages: pagesFromTotal(res.Total, res.Size),
		},
	})
}

// GET /products/:id
func (h *ProductsHandler) Detail(c *gin.Context) {
	p, err := h.repo.GetActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.Fail(c, apperr.NotFoundErr("Product not found."))
			return
		}
		middleware.Fail(c, apperr.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, newProductDTO(p))
}
