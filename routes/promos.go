package routes

import (
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/promos"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/middleware"

	"github.com/gin-gonic/gin"
)

func PromosRoutes(r *gin.Engine) {
	r.POST("/promos/validate", promos.ValidatePromoCode)

	promoRoutes := r.Group("/promos")
	promoRoutes.Use(middleware.AdminAuth())
	{
		promoRoutes.POST("", promos.CreatePromoCode)
		promoRoutes.GET("", promos.ListPromoCodes)
	}
}
