package routes

import (
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/ping"

	"github.com/gin-gonic/gin"
)

func PingRoutes(r *gin.Engine) {
	h := ping.New()
	r.GET("/ping", h.HandlePing)
}
