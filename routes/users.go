package routes

import (
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/users"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/middleware"

	"github.com/gin-gonic/gin"
)

func UsersRoutes(r *gin.Engine) {
	userRoutes := r.Group("/users")
	userRoutes.Use(middleware.JWTAuth())
	{
		userRoutes.GET("/me", users.GetMe)
		userRoutes.GET("/me/subscription-events", users.GetSubscriptionHistory)
	}
}
