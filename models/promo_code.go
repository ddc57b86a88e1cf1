package models

import (
	"errors"
	"time"
)

type PromoBenefit string

const (
	BenefitFreeSubscription PromoBenefit = "free_subscription"
	BenefitDiscountPercent  PromoBenefit = "discount_percent"
	BenefitDiscountAmount   PromoBenefit = "discount_amount"
	BenefitFreeTrial        PromoBenefit = "free_trial"
)

var ErrPromoMixedBenefit = errors.New("promo code mixes discount and trial benefits")

// PromoCode maps a code string to exactly one benefit mechanism. A code
// granting both a discount and a trial produces ambiguous billing on the
// Stripe side, so mixed configurations are rejected when the code is
// created, not at checkout time.
type PromoCode struct {
	ID      string       `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code    string       `json:"code" gorm:"uniqueIndex;not null"`
	Benefit PromoBenefit `json:"benefit" gorm:"type:varchar(30);not null"`

	// Magnitude of the benefit; only the field matching Benefit is set.
	DiscountPercent int `json:"discountPercent"`
	DiscountAmount  int `json:"discountAmount"`
	TrialDays       int `json:"trialDays"`
	FreeMonths      int `json:"freeMonths"`

	// Set for discount-mechanism codes; the coupon is created on the
	// Stripe side when the code is registered.
	StripeCouponId string `json:"stripeCouponId"`

	MaxUses        int        `json:"maxUses"`
	MaxUsesPerUser int        `json:"maxUsesPerUser"`
	UsedCount      int        `json:"usedCount"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil"`
	Active         bool       `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate rejects configurations where more than one magnitude field is
// set, or where the magnitude does not match the declared benefit.
func (p *PromoCode) Validate() error {
	set := 0
	if p.DiscountPercent > 0 {
		set++
	}
	if p.DiscountAmount > 0 {
		set++
	}
	if p.TrialDays > 0 {
		set++
	}
	if p.FreeMonths > 0 {
		set++
	}
	if set > 1 {
		return ErrPromoMixedBenefit
	}

	switch p.Benefit {
	case BenefitDiscountPercent:
		if p.DiscountPercent <= 0 || p.DiscountPercent > 100 {
			return errors.New("discount_percent requires a percentage between 1 and 100")
		}
	case BenefitDiscountAmount:
		if p.DiscountAmount <= 0 {
			return errors.New("discount_amount requires a positive amount in cents")
		}
	case BenefitFreeTrial:
		if p.TrialDays <= 0 {
			return errors.New("free_trial requires a positive number of trial days")
		}
	case BenefitFreeSubscription:
		if p.FreeMonths <= 0 {
			return errors.New("free_subscription requires a positive number of free months")
		}
	default:
		return errors.New("unknown promo benefit: " + string(p.Benefit))
	}
	return nil
}

// GrantsTrial reports whether the code is applied as trial days on the
// checkout session rather than as a Stripe coupon.
func (p *PromoCode) GrantsTrial() bool {
	return p.Benefit == BenefitFreeTrial || p.Benefit == BenefitFreeSubscription
}

// TrialDaysGranted returns the free period in days for trial-mechanism
// codes, converting free months at 30 days per month.
func (p *PromoCode) TrialDaysGranted() int {
	if p.Benefit == BenefitFreeTrial {
		return p.TrialDays
	}
	if p.Benefit == BenefitFreeSubscription {
		return p.FreeMonths * 30
	}
	return 0
}

// PromoRedemption records one use of a promo code, keyed by user when
// known or by an anonymous fingerprint otherwise.
type PromoRedemption struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	PromoCodeID string    `json:"promoCodeId" gorm:"type:uuid;not null;index"`
	UserID      string    `json:"userId" gorm:"index"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt"`
}
