package stripe

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/promos"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/utils"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	session "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	stripeSubscription "github.com/stripe/stripe-go/v82/subscription"
)

// subscriptionGet fetches a subscription and returns the raw API
// response, which still carries every field regardless of SDK version.
// Package-level var so webhook tests can stub the Stripe API away.
var subscriptionGet = func(id string) ([]byte, error) {
	sub, err := stripeSubscription.Get(id, nil)
	if err != nil {
		return nil, err
	}
	if sub.LastResponse != nil && len(sub.LastResponse.RawJSON) > 0 {
		return sub.LastResponse.RawJSON, nil
	}
	return json.Marshal(sub)
}

type checkoutInput struct {
	Interval   string `json:"interval" binding:"required"`
	PromoCode  string `json:"promoCode"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

// CreateCheckoutSession starts a Stripe Checkout for a subscription
// @Summary Create a Stripe Checkout session
// @Description Start a Stripe payment for a monthly or annual subscription. An optional promo code is validated first and applied as a coupon or as trial days depending on its benefit. Returns the session ID and the redirect URL.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param body body checkoutInput true "Checkout parameters"
// @Security BearerAuth
// @Success 200 {object} map[string]string "sessionId, url"
// @Failure 400 {object} map[string]string "error: Invalid interval or rejected promo code"
// @Failure 401 {object} map[string]string "error: Unauthorized"
// @Failure 404 {object} map[string]string "error: User not found"
// @Failure 500 {object} map[string]string "error: Stripe error or server error"
// @Router /subscriptions/checkout [post]
func CreateCheckoutSession(c *gin.Context) {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	userID, exists := c.Get("user_id")
	if !exists {
		utils.LogError(nil, "User not authenticated in CreateCheckoutSession")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input checkoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	var priceID string
	switch input.Interval {
	case "monthly":
		priceID = os.Getenv("STRIPE_PRICE_MONTHLY")
	case "annual":
		priceID = os.Getenv("STRIPE_PRICE_ANNUAL")
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Interval must be monthly or annual"})
		return
	}
	if priceID == "" {
		utils.LogError(nil, "Stripe price id not configured for interval "+input.Interval)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Billing is not configured"})
		return
	}

	var payer models.User
	if err := db.DB.First(&payer, "id = ?", userID).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "User not found in CreateCheckoutSession")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Promo codes are validated before any Stripe call; a rejected code
	// is a user-facing 400 with the reason, not a system error.
	var promo *models.PromoCode
	if code := strings.TrimSpace(input.PromoCode); code != "" {
		var err error
		promo, err = promos.ResolveCode(code, payer.ID)
		if err != nil {
			if errors.Is(err, promos.ErrUnknownPromoCode) || errors.Is(err, promos.ErrPromoExpired) || errors.Is(err, promos.ErrPromoExhausted) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			utils.LogErrorWithUser(userID, err, "Error resolving promo code in CreateCheckoutSession")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error validating promo code"})
			return
		}
	}

	if payer.StripeCustomerId != "" {
		// The stored customer may have been deleted on the Stripe side
		if _, err := customer.Get(payer.StripeCustomerId, nil); err != nil {
			payer.StripeCustomerId = ""
		}
	}
	if payer.StripeCustomerId == "" {
		custParams := &stripe.CustomerParams{
			Email: stripe.String(payer.Email),
			Name:  stripe.String(payer.UserName),
		}
		cust, err := customer.New(custParams)
		if err != nil {
			utils.LogErrorWithUser(userID, err, "Error creating the Stripe customer in CreateCheckoutSession")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating the Stripe customer"})
			return
		}
		db.DB.Model(&payer).Update("stripe_customer_id", cust.ID)
		payer.StripeCustomerId = cust.ID
	}

	successURL := input.SuccessURL
	if successURL == "" {
		successURL = os.Getenv("CHECKOUT_SUCCESS_URL")
	}
	cancelURL := input.CancelURL
	if cancelURL == "" {
		cancelURL = os.Getenv("CHECKOUT_CANCEL_URL")
	}

	metadata := map[string]string{"user_id": payer.ID}
	if promo != nil {
		metadata["promo_code"] = promo.Code
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(payer.StripeCustomerId),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(payer.ID),
		Metadata:          metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	// A promo code resolves to exactly one mechanism: a coupon on the
	// recurring price, or a free period before the first charge.
	if promo != nil {
		if promo.GrantsTrial() {
			params.SubscriptionData.TrialPeriodDays = stripe.Int64(int64(promo.TrialDaysGranted()))
		} else if promo.StripeCouponId != "" {
			params.Discounts = []*stripe.CheckoutSessionDiscountParams{
				{Coupon: stripe.String(promo.StripeCouponId)},
			}
		}
	}

	s, err := session.New(params)
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Error creating the Stripe session in CreateCheckoutSession")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	utils.LogSuccessWithUser(userID, "Stripe checkout session created in CreateCheckoutSession")
	c.JSON(http.StatusOK, gin.H{"sessionId": s.ID, "url": s.URL})
}

// CancelSubscription flags the subscription for cancellation at period end
// @Summary Cancel the current subscription
// @Description Ask Stripe to cancel the subscription at the end of the current period. The webhook pipeline applies the final downgrade when customer.subscription.deleted arrives.
// @Tags subscriptions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "message: Subscription will be canceled at period end"
// @Failure 401 {object} map[string]string "error: Unauthorized"
// @Failure 404 {object} map[string]string "error: No active subscription"
// @Failure 500 {object} map[string]string "error: Error when canceling the Stripe subscription"
// @Router /subscriptions [delete]
func CancelSubscription(c *gin.Context) {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")

	userID, exists := c.Get("user_id")
	if !exists {
		utils.LogError(nil, "User not authenticated in CancelSubscription")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User
	if err := db.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "User not found in CancelSubscription")
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if user.StripeSubscriptionId == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active subscription"})
		return
	}

	_, err := stripeSubscription.Update(user.StripeSubscriptionId, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Error canceling the Stripe subscription in CancelSubscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error when canceling the Stripe subscription"})
		return
	}

	if err := db.DB.Model(&user).Update("cancel_at_period_end", true).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Error updating the cancellation flag in CancelSubscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error when updating the subscription status"})
		return
	}

	utils.LogSuccessWithUser(userID, "Subscription flagged for cancellation in CancelSubscription")
	c.JSON(http.StatusOK, gin.H{"message": "Subscription will be canceled at period end"})
}
