package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/controllers"
	"storefront/middleware"
)

type Handlers struct {
	Products  *controllers.ProductController
	Orders    *controllers.OrderController
	JWTSecret []byte
}

// NewRouter builds the engine with the shared middleware and every route.
func NewRouter(h Handlers, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(logger))
	RegisterRoutes(r, h)
	return r
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/products", h.Products.GetProducts)
		api.GET("/products/top", h.Products.GetTopProducts)
		api.GET("/products/:id", h.Products.GetProduct)
		api.GET("/products/:id/reviews", h.Products.GetReviews)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(h.JWTSecret))
		{
			protected.PUT("/products/:id/reviews", h.Products.UpsertReview)
			protected.DELETE("/products/:id/reviews/:reviewUser", h.Products.DeleteReview)

			protected.POST("/orders", h.Orders.Checkout)
			protected.GET("/orders/me", h.Orders.GetMyOrders)
			protected.GET("/orders/:id", h.Orders.GetOrder)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminMiddleware())
			{
				admin.GET("/products", h.Products.GetProductsAdmin)
				admin.POST("/products", h.Products.CreateProduct)
				admin.PUT("/products/:id", h.Products.UpdateProduct)
				admin.DELETE("/products/:id", h.Products.DeleteProduct)

				admin.GET("/orders", h.Orders.GetOrdersAdmin)
				admin.GET("/orders/recent", h.Orders.GetRecentOrders)
				admin.GET("/orders/stats", h.Orders.GetOrderStats)
				admin.PUT("/orders/:id", h.Orders.UpdateOrderStatus)
				admin.DELETE("/orders/:id", h.Orders.DeleteOrder)
			}
		}
	}
}
