package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrWriteFailed = errors.New("subscription write failed")

// auditSnapshot is what gets frozen into the subscription_events payload
// column for each processed event.
type auditSnapshot struct {
	StripeSubscriptionID string                    `json:"stripe_subscription_id,omitempty"`
	Status               models.SubscriptionStatus `json:"status"`
	Type                 models.SubscriptionType   `json:"type"`
	Source               string                    `json:"source,omitempty"`
	Plan                 models.PlanInterval       `json:"plan,omitempty"`
	IsTrial              bool                      `json:"is_trial"`
	CancelAtPeriodEnd    bool                      `json:"cancel_at_period_end"`
	Amount               int                       `json:"amount,omitempty"`
	PromoCode            string                    `json:"promo_code,omitempty"`
}

// ApplySubscription overwrites the user's full subscription snapshot with
// the classified record and appends one audit row, both in a single
// transaction. The write is last-write-wins: replaying the same event is
// naturally idempotent, but an older event replayed after a newer one
// regresses the snapshot (event timestamps are stored in the audit log,
// not compared before writing).
func ApplySubscription(user *models.User, sub ClassifiedSubscription, eventType string, eventID string, eventAt time.Time) (*models.User, error) {
	status := models.StatusFree
	if sub.IsActive {
		status = models.StatusPremium
	}

	now := time.Now().UTC()
	activatedAt := user.ActivatedAt
	if sub.IsActive && activatedAt == nil {
		activatedAt = &now
	}

	updates := map[string]interface{}{
		"stripe_subscription_id": sub.SubscriptionID,
		"stripe_price_id":        sub.PriceID,
		"subscription_status":    status,
		"subscription_type":      sub.Type,
		"subscription_source":    sub.Source,
		"current_plan":           sub.Plan,
		"is_trial":               sub.IsTrialing,
		"cancel_at_period_end":   sub.CancelAtPeriodEnd,
		"activated_at":           activatedAt,
		"period_start":           sub.StartDate,
		"period_end":             sub.EndDate,
		"next_billing_date":      sub.NextBillingDate,
		"trial_end_date":         sub.TrialEnd,
		"amount":                 sub.Amount,
		"currency":               sub.Currency,
	}
	if sub.CustomerID != "" {
		updates["stripe_customer_id"] = sub.CustomerID
	}

	snapshot := auditSnapshot{
		StripeSubscriptionID: sub.SubscriptionID,
		Status:               status,
		Type:                 sub.Type,
		Source:               sub.Source,
		Plan:                 sub.Plan,
		IsTrial:              sub.IsTrialing,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		Amount:               sub.Amount,
	}
	if sub.IsPromo {
		snapshot.PromoCode = sub.Source
	}

	if err := writeSnapshot(user.ID, updates, snapshot, eventType, eventID, eventAt); err != nil {
		return nil, err
	}

	user.StripeSubscriptionId = sub.SubscriptionID
	user.StripePriceId = sub.PriceID
	if sub.CustomerID != "" {
		user.StripeCustomerId = sub.CustomerID
	}
	user.SubscriptionStatus = status
	user.SubscriptionType = sub.Type
	user.SubscriptionSource = sub.Source
	user.CurrentPlan = sub.Plan
	user.IsTrial = sub.IsTrialing
	user.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	user.ActivatedAt = activatedAt
	user.PeriodStart = sub.StartDate
	user.PeriodEnd = sub.EndDate
	user.NextBillingDate = sub.NextBillingDate
	user.TrialEndDate = sub.TrialEnd
	user.Amount = sub.Amount
	user.Currency = sub.Currency
	return user, nil
}

// RevertToFree is the unconditional downgrade applied on
// customer.subscription.deleted. It bypasses the classifier: whatever the
// deleted subscription looked like, the user ends up on the free tier
// with the external ids cleared.
func RevertToFree(user *models.User, eventType string, eventID string, eventAt time.Time) (*models.User, error) {
	updates := map[string]interface{}{
		"stripe_subscription_id": "",
		"stripe_price_id":        "",
		"subscription_status":    models.StatusFree,
		"subscription_type":      models.TypeFree,
		"subscription_source":    "",
		"current_plan":           models.PlanFree,
		"is_trial":               false,
		"cancel_at_period_end":   false,
		"period_start":           nil,
		"period_end":             nil,
		"next_billing_date":      nil,
		"trial_end_date":         nil,
		"amount":                 0,
		"currency":               "",
	}

	snapshot := auditSnapshot{
		Status: models.StatusFree,
		Type:   models.TypeFree,
	}

	if err := writeSnapshot(user.ID, updates, snapshot, eventType, eventID, eventAt); err != nil {
		return nil, err
	}

	user.StripeSubscriptionId = ""
	user.StripePriceId = ""
	user.SubscriptionStatus = models.StatusFree
	user.SubscriptionType = models.TypeFree
	user.SubscriptionSource = ""
	user.CurrentPlan = models.PlanFree
	user.IsTrial = false
	user.CancelAtPeriodEnd = false
	user.PeriodStart = nil
	user.PeriodEnd = nil
	user.NextBillingDate = nil
	user.TrialEndDate = nil
	user.Amount = 0
	user.Currency = ""
	return user, nil
}

func writeSnapshot(userID string, updates map[string]interface{}, snapshot auditSnapshot, eventType string, eventID string, eventAt time.Time) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("user row not found")
		}

		event := models.SubscriptionEvent{
			UserID:    userID,
			EventType: eventType,
			EventID:   eventID,
			Payload:   datatypes.JSON(payload),
			EventAt:   eventAt,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
