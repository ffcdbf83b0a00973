package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/models"
	"storefront/services"
)

type OrderController struct {
	orders  *services.OrderService
	timeout time.Duration
}

func NewOrderController(orders *services.OrderService, timeout time.Duration) *OrderController {
	return &OrderController{orders: orders, timeout: timeout}
}

// Checkout places an order from the submitted cart snapshot.
func (h *OrderController) Checkout(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}

	var body models.CheckoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBindError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Create(ctx, who.UserID, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (h *OrderController) GetMyOrders(c *gin.Context) {
	who, ok := requester(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListByUser(ctx, who.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// GetOrder returns one order to its owner or to an admin.
func (h *OrderController) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id", "order")
	if !ok {
		return
	}
	who, ok := requester(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	order, err := h.orders.Get(ctx, id, who)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}
