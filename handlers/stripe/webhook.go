// Package stripe owns the subscription reconciliation pipeline: webhook
// verification and routing, subscription classification, user resolution
// and the snapshot writer. The webhook endpoint deliberately answers 200
// for every verified event, including events whose handler failed: Stripe
// redelivers on non-2xx, and redelivering a poison event does not heal
// it, it only floods the endpoint. Failed events are logged with their id
// and type for out-of-band alerting and manual replay.
package stripe

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/handlers/promos"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/utils"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBodyBytes = int64(65536)

// StripeWebhookHandler receives Stripe webhook events
// @Summary Stripe webhook endpoint
// @Description Verify the event signature and reconcile the user's subscription snapshot
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]bool "received: true"
// @Failure 400 {object} map[string]string "error: Invalid signature"
// @Failure 500 {object} map[string]string "error: Webhook secret not configured"
// @Router /stripe/webhook [post]
func StripeWebhookHandler(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

	// The signature covers the raw bytes; the body must not be parsed
	// and re-serialized before verification.
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cannot read the request body"})
		return
	}

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		utils.LogError(nil, "STRIPE_WEBHOOK_SECRET is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe signature"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		utils.LogError(err, "Stripe signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Stripe signature verification failed"})
		return
	}

	routeEvent(event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// routeEvent dispatches a verified event to exactly one handler. Nothing
// below this point is allowed to escape: panics and errors are logged
// with the event identity and swallowed.
func routeEvent(event stripe.Event) {
	defer func() {
		if r := recover(); r != nil {
			utils.LogEvent(event.ID, string(event.Type), nil, "Panic while handling webhook event")
		}
	}()

	eventAt := time.Unix(event.Created, 0).UTC()

	var err error
	switch event.Type {
	case "checkout.session.completed":
		err = handleCheckoutSessionCompleted(event, eventAt)
	case "customer.subscription.created", "customer.subscription.updated":
		err = handleSubscriptionChanged(event, eventAt)
	case "customer.subscription.deleted":
		err = handleSubscriptionDeleted(event, eventAt)
	case "customer.subscription.trial_will_end":
		// Informational; hook point for a trial-ending notification.
		utils.LogEvent(event.ID, string(event.Type), nil, "Trial ending soon")
	case "invoice.payment_succeeded":
		err = handleInvoicePaymentSucceeded(event)
	case "invoice.payment_failed":
		utils.LogEvent(event.ID, string(event.Type), nil, "Invoice payment failed")
	default:
		utils.LogEvent(event.ID, string(event.Type), nil, "Ignored webhook event type")
	}

	if err != nil {
		utils.LogEvent(event.ID, string(event.Type), err, "Webhook event handling failed")
	}
}

// fetchSubscriptionDetail retrieves the full subscription object from the
// Stripe API. Checkout-completed events only carry the subscription id,
// so the classifier input has to be fetched. The call goes through the
// breaker so a degraded Stripe API sheds load instead of piling up
// blocked handlers; tests stub the whole function.
var fetchSubscriptionDetail = func(subscriptionID string) (*subscriptionPayload, error) {
	var sub subscriptionPayload
	err := stripeBreaker.Do(func() error {
		stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
		detail, err := subscriptionGet(subscriptionID)
		if err != nil {
			return err
		}
		return json.Unmarshal(detail, &sub)
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

var stripeBreaker = utils.NewBreaker(5, 30*time.Second)

func handleCheckoutSessionCompleted(event stripe.Event, eventAt time.Time) error {
	var session checkoutSessionPayload
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return err
	}

	// One-time payments have no subscription to reconcile.
	if session.Mode != "subscription" || session.Subscription == "" {
		utils.LogEvent(event.ID, string(event.Type), nil, "Checkout session without subscription, nothing to reconcile")
		return nil
	}

	internalID := session.Metadata["user_id"]
	if internalID == "" {
		internalID = session.ClientReferenceID
	}
	user, err := ResolveIdentity(internalID, session.email(), session.Customer)
	if err != nil {
		return err
	}

	sub, err := fetchSubscriptionDetail(session.Subscription)
	if err != nil {
		return err
	}

	promoCode := session.Metadata["promo_code"]
	classified := ClassifySubscription(sub, promoCode, session.AmountTotal == 0, DefaultClassifierPolicy())

	if _, err := ApplySubscription(user, classified, string(event.Type), event.ID, eventAt); err != nil {
		return err
	}

	if promoCode != "" {
		if promo, perr := promos.ResolveCode(promoCode, user.ID); perr == nil {
			if rerr := promos.RecordRedemption(promo, user.ID, session.ID); rerr != nil {
				utils.LogEvent(event.ID, string(event.Type), rerr, "Could not record promo redemption")
			}
		}
	}

	utils.LogEvent(event.ID, string(event.Type), nil, "Checkout session reconciled")
	return nil
}

func handleSubscriptionChanged(event stripe.Event, eventAt time.Time) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return err
	}

	// Checkout plants the internal user id in the subscription metadata;
	// subscriptions created outside checkout fall back to the customer id.
	user, err := ResolveIdentity(sub.Metadata["user_id"], "", sub.Customer)
	if err != nil {
		return err
	}

	classified := ClassifySubscription(&sub, sub.Metadata["promo_code"], false, DefaultClassifierPolicy())

	if _, err := ApplySubscription(user, classified, string(event.Type), event.ID, eventAt); err != nil {
		return err
	}

	utils.LogEvent(event.ID, string(event.Type), nil, "Subscription snapshot updated")
	return nil
}

func handleSubscriptionDeleted(event stripe.Event, eventAt time.Time) error {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return err
	}

	// Deletion bypasses the classifier: the user is downgraded whatever
	// the final subscription object looked like.
	var user models.User
	err := db.DB.Where("stripe_subscription_id = ?", sub.ID).First(&user).Error
	if err != nil {
		resolved, rerr := ResolveUser("", sub.Customer)
		if rerr != nil {
			return rerr
		}
		user = *resolved
	}

	if _, err := RevertToFree(&user, string(event.Type), event.ID, eventAt); err != nil {
		return err
	}

	utils.LogEvent(event.ID, string(event.Type), nil, "User reverted to free tier")
	return nil
}

func handleInvoicePaymentSucceeded(event stripe.Event) error {
	var invoice invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return err
	}

	subID := invoice.subscriptionID()
	if subID == "" {
		utils.LogEvent(event.ID, string(event.Type), nil, "Invoice without subscription, ignored")
		return nil
	}

	// Informational: refresh the last-payment timestamp, nothing else.
	now := time.Now().UTC()
	res := db.DB.Model(&models.User{}).
		Where("stripe_subscription_id = ?", subID).
		Update("last_payment_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		utils.LogEvent(event.ID, string(event.Type), nil, "No user matches the invoice subscription")
	}
	return nil
}
