package handlers

import (
	"github.com/gin-gonic/gin"

	"bookletku/internal/gateway/middleware"
	"bookletku/internal/platform"
)

// RegisterRoutes mounts the storefront API under /api/v1. Admin routes only
// require a token here; the platform rejects non-admin writes.
func RegisterRoutes(r *gin.Engine, auth platform.Auth, menu *MenuHTTPHandler, authHandler *AuthHTTPHandler) {
	// --- Public API Group ---
	public := r.Group("/api/v1")
	public.Use(middleware.Credentials(auth))
	{
		public.GET("/menu", menu.GetMenu)
		public.GET("/menu/items/:id", menu.GetItem)
		public.GET("/settings", menu.GetSettings)
		public.POST("/orders", menu.PlaceOrder)
		public.GET("/realtime", menu.Realtime)

		authGroup := public.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/logout", authHandler.Logout)
			authGroup.POST("/refresh", authHandler.Refresh)
		}
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.Credentials(auth), middleware.RequireAuth())
	{
		protected.GET("/auth/me", authHandler.Me)
		protected.POST("/profile/avatar", menu.UploadAvatar)

		protected.POST("/items", menu.CreateItem)
		protected.PUT("/items/:id", menu.UpdateItem)
		protected.DELETE("/items/:id", menu.DeleteItem)
		protected.PUT("/menu/order", menu.ReorderItems)
		protected.POST("/uploads/photo", menu.UploadPhoto)
		protected.PUT("/settings", menu.UpdateSettings)
	}
}
