package stripe

import (
	"time"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
)

// ClassifiedSubscription is the normalized record the writer applies to
// the user row. It is derived from a raw subscription payload by
// ClassifySubscription and carries no reference back to Stripe types.
type ClassifiedSubscription struct {
	SubscriptionID string
	CustomerID     string
	PriceID        string

	IsActive   bool
	IsTrialing bool
	IsPromo    bool

	Type   models.SubscriptionType
	Source string
	Plan   models.PlanInterval

	StartDate         *time.Time
	EndDate           *time.Time
	NextBillingDate   *time.Time
	TrialEnd          *time.Time
	CancelAtPeriodEnd bool

	Amount   int
	Currency string
}

// ClassifierPolicy holds the judgment calls the classifier makes when a
// subscription is both discounted and trialing. The default prefers the
// trial dates for all date fields while still labelling the subscription
// as promo when either condition holds.
type ClassifierPolicy struct {
	// TrialDatesFirst makes trial_start/trial_end win over the billing
	// period for startDate/endDate/nextBillingDate when both are present.
	TrialDatesFirst bool
}

func DefaultClassifierPolicy() ClassifierPolicy {
	return ClassifierPolicy{TrialDatesFirst: true}
}

// ClassifySubscription derives the normalized record from a subscription
// payload. promoHint is a promo code supplied outside the subscription
// object (checkout session metadata); it only marks the subscription as
// promotional when the checkout was free of charge, otherwise a paid
// checkout that merely carried a code in metadata would be mislabelled.
// Pure transform, no I/O.
func ClassifySubscription(sub *subscriptionPayload, promoHint string, zeroAmount bool, policy ClassifierPolicy) ClassifiedSubscription {
	price := sub.price()

	out := ClassifiedSubscription{
		SubscriptionID:    sub.ID,
		CustomerID:        sub.Customer,
		PriceID:           price.ID,
		IsTrialing:        sub.Status == "trialing",
		IsActive:          sub.Status == "active" || sub.Status == "trialing",
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Amount:            int(price.UnitAmount),
		Currency:          price.Currency,
	}

	out.IsPromo = sub.Discount != nil || (promoHint != "" && zeroAmount)
	if out.IsPromo {
		out.Type = models.TypePromo
	} else {
		out.Type = models.TypePaid
	}

	out.Source = "payment"
	if sub.Discount != nil {
		if sub.Discount.Coupon.Name != "" {
			out.Source = sub.Discount.Coupon.Name
		} else if sub.Discount.Coupon.ID != "" {
			out.Source = sub.Discount.Coupon.ID
		}
	}
	if promoHint != "" {
		out.Source = promoHint
	}

	if price.Recurring.Interval == "year" {
		out.Plan = models.PlanAnnual
	} else {
		out.Plan = models.PlanMonthly
	}

	trialStart := unixTime(sub.TrialStart)
	trialEnd := unixTime(sub.TrialEnd)
	periodStart := unixTime(sub.periodStart())
	periodEnd := unixTime(sub.periodEnd())

	out.TrialEnd = trialEnd

	if policy.TrialDatesFirst && trialStart != nil {
		out.StartDate = trialStart
	} else {
		out.StartDate = periodStart
	}
	if policy.TrialDatesFirst && trialEnd != nil {
		out.EndDate = trialEnd
		out.NextBillingDate = trialEnd
	} else {
		out.EndDate = periodEnd
		out.NextBillingDate = periodEnd
	}

	return out
}
