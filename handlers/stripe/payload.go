package stripe

import (
	"time"
)

// Webhook payloads are decoded into these local structs instead of the
// stripe-go model types. The SDK structs move fields around between major
// versions (current_period_* lives on subscription items since the Basil
// API); decoding the raw JSON ourselves keeps the classifier independent
// of that churn and unit-testable from plain fixtures.

type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	TrialStart         int64             `json:"trial_start"`
	TrialEnd           int64             `json:"trial_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Discount           *discountPayload  `json:"discount"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []subscriptionItemPayload `json:"data"`
	} `json:"items"`
}

type subscriptionItemPayload struct {
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	Price              pricePayload `json:"price"`
}

type pricePayload struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Recurring  struct {
		Interval string `json:"interval"`
	} `json:"recurring"`
}

type discountPayload struct {
	PromotionCode string `json:"promotion_code"`
	Coupon        struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		PercentOff float64 `json:"percent_off"`
		AmountOff  int64   `json:"amount_off"`
		Duration   string  `json:"duration"`
	} `json:"coupon"`
}

type checkoutSessionPayload struct {
	ID              string `json:"id"`
	Mode            string `json:"mode"`
	Customer        string `json:"customer"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	ClientReferenceID string            `json:"client_reference_id"`
	Subscription      string            `json:"subscription"`
	AmountTotal       int64             `json:"amount_total"`
	PaymentStatus     string            `json:"payment_status"`
	Metadata          map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AmountPaid   int64  `json:"amount_paid"`
	Parent       struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionID handles both the legacy top-level field and the Basil
// parent.subscription_details location.
func (i *invoicePayload) subscriptionID() string {
	if i.Parent.SubscriptionDetails.Subscription != "" {
		return i.Parent.SubscriptionDetails.Subscription
	}
	return i.Subscription
}

// periodStart falls back to the first subscription item when the
// top-level field is absent.
func (s *subscriptionPayload) periodStart() int64 {
	if s.CurrentPeriodStart != 0 {
		return s.CurrentPeriodStart
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodStart
	}
	return 0
}

func (s *subscriptionPayload) periodEnd() int64 {
	if s.CurrentPeriodEnd != 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

func (s *subscriptionPayload) price() pricePayload {
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].Price
	}
	return pricePayload{}
}

// email is the best identity a checkout session carries; customer_email
// is only set when the session was created with one, customer_details is
// filled in by Stripe at completion.
func (cs *checkoutSessionPayload) email() string {
	if cs.CustomerEmail != "" {
		return cs.CustomerEmail
	}
	return cs.CustomerDetails.Email
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
