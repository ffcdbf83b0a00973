package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/middleware"
	"storefront/models"
	"storefront/services"
)

type ProductController struct {
	catalog *services.CatalogService
	timeout time.Duration
}

func NewProductController(catalog *services.CatalogService, timeout time.Duration) *ProductController {
	return &ProductController{catalog: catalog, timeout: timeout}
}

// GetProducts lists products with keyword search, field filters and pagination.
func (h *ProductController) GetProducts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.catalog.List(ctx, c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":               true,
		"products":              res.Products,
		"productsCount":         res.ProductsCount,
		"resultPerPage":         res.ResultPerPage,
		"filteredProductsCount": res.FilteredProductsCount,
	})
}

func (h *ProductController) GetTopProducts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Top(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": products})
}

func (h *ProductController) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

func (h *ProductController) GetReviews(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	reviews, err := h.catalog.Reviews(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reviews": reviews})
}

// UpsertReview creates the caller's review or replaces their earlier one.
func (h *ProductController) UpsertReview(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}
	who, ok := requester(c)
	if !ok {
		return
	}

	var body models.ReviewInput
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}

	claims, _ := middleware.GetClaims(c)
	author := models.User{ID: who.UserID, Name: claims.Name, Email: claims.Email}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.UpsertReview(ctx, id, author, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"ratings":      product.Ratings,
		"numOfReviews": product.NumOfReviews,
	})
}

// DeleteReview removes a review; the reviewer or an admin may call it.
func (h *ProductController) DeleteReview(c *gin.Context) {
	id, ok := paramID(c, "id", "product")
	if !ok {
		return
	}
	reviewer, ok := paramID(c, "reviewUser", "user")
	if !ok {
		return
	}
	who, ok := requester(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.DeleteReview(ctx, id, reviewer, who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"ratings":      product.Ratings,
		"numOfReviews": product.NumOfReviews,
	})
}
