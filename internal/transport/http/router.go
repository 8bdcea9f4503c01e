package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jwt-auth-demo/internal/handlers"
	authmw "jwt-auth-demo/internal/middleware/auth"
	"jwt-auth-demo/internal/models"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	AuthMW         *authmw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	api := e.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)
	auth.POST("/create-admin", d.AuthHandler.CreateAdmin,
		d.AuthMW.RequireAuth, d.AuthMW.RequireRole(models.RoleSuperAdmin))

	products := api.Group("/products", d.AuthMW.RequireAuth)
	products.GET("", d.ProductHandler.GetProducts)
	if d.SearchHandler != nil {
		products.GET("/search", d.SearchHandler.Search)
	}
	products.GET("/:id", d.ProductHandler.GetProduct)

	admin := d.AuthMW.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
	products.POST("", d.ProductHandler.CreateProduct, admin)
	products.PUT("/:id", d.ProductHandler.UpdateProduct, admin)
	products.DELETE("/:id", d.ProductHandler.DeleteProduct, admin)
}
