package handlers

import (
	"net/http"

	"emporio-pos/internal/auth"
	"emporio-pos/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Routes is everything the router needs. A nil AI handler leaves /api/ask out.
type Routes struct {
	Tokens            *auth.Manager
	AllowRegistration bool

	Auth     *AuthHandler
	Products *ProductHandler
	Sales    *SalesHandler
	Carts    *CartHandler
	Reports  *ReportHandler
	Payments *PaymentHandler
	AI       *AIHandler
}

func (rt Routes) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.POST("/login", rt.Auth.Login)

	// Only opens if explicitly allowed in .env
	if rt.AllowRegistration {
		r.POST("/register", rt.Auth.Register)
	}

	// --- PROTECTED ROUTES ---
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(rt.Tokens))
	{
		// STAFF & ADMIN
		api.GET("/products", rt.Products.List)
		api.GET("/products/low-stock", rt.Products.LowStock)
		api.GET("/products/scan/:barcode", rt.Products.Scan)
		api.GET("/products/:id", rt.Products.Get)

		api.POST("/sales", rt.Sales.Create)
		api.GET("/sales", rt.Sales.List)
		api.GET("/sales/:id", rt.Sales.Get)

		api.POST("/carts", rt.Carts.Open)
		api.GET("/carts/:id", rt.Carts.Get)
		api.DELETE("/carts/:id", rt.Carts.Close)
		api.DELETE("/carts/:id/items", rt.Carts.Clear)
		api.POST("/carts/:id/items", rt.Carts.AddItem)
		api.PUT("/carts/:id/items/:index", rt.Carts.UpdateItem)
		api.DELETE("/carts/:id/items/:index", rt.Carts.RemoveItem)
		api.POST("/carts/:id/checkout", rt.Carts.Checkout)

		api.GET("/payments/reader", rt.Payments.Reader)

		// ADMIN ONLY
		admin := api.Group("")
		admin.Use(middleware.RequireRole(auth.RoleAdmin))
		{
			admin.PUT("/sales/:id/cancel", rt.Sales.Cancel)

			admin.POST("/products", rt.Products.Create)
			admin.PUT("/products/:id", rt.Products.Update)
			admin.DELETE("/products/:id", rt.Products.Delete)

			admin.GET("/dashboard", rt.Reports.Dashboard)
			admin.GET("/reports/valuation", rt.Reports.StockValuation)

			if rt.AI != nil {
				admin.POST("/ask", rt.AI.Ask)
			}
		}
	}
}
