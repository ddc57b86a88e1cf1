package routes

import (
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/stripe"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/users"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/middleware"

	"github.com/gin-gonic/gin"
)

func StripeRoutes(r *gin.Engine) {
	subscriptionRoutes := r.Group("/subscriptions")
	subscriptionRoutes.Use(middleware.JWTAuth())
	{
		subscriptionRoutes.POST("/checkout", stripe.CreateCheckoutSession)
		subscriptionRoutes.GET("/me", users.GetMe)
		subscriptionRoutes.DELETE("", stripe.CancelSubscription)
	}

	// No JWT here: the Stripe signature is the authentication.
	r.POST("/stripe/webhook", stripe.StripeWebhookHandler)
}
