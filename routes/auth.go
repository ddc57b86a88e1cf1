package routes

import (
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/auth"

	"github.com/gin-gonic/gin"
)

func AuthRoutes(r *gin.Engine) {
	r.POST("/register", auth.Register)
	r.POST("/login", auth.Login)
}
