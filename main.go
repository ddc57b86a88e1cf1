package main

import (
	"log"
	"os"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	_ "github.com/jsonmack1/Bulwinkle-Plan-sub003/docs"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/routes"

	"github.com/gin-gonic/gin"
)

// @title Bulwinkle Subscription API
// @version 1.0
// @description Subscription reconciliation backend for the Bulwinkle lesson plan builder
// @host localhost:8080
// @BasePath /
// @SecurityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter the JWT with the Bearer prefix: Bearer <JWT>
func main() {

	gin.SetMode(gin.ReleaseMode)

	db.InitDB()

	r := routes.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Error starting the server:", err)
	}
}
