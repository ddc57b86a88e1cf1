package models

import (
	"time"
)

type Role string

const (
	AdminRole Role = "ADMIN"
	UserRole  Role = "USER"
)

type SubscriptionStatus string

const (
	StatusFree    SubscriptionStatus = "free"
	StatusPremium SubscriptionStatus = "premium"
)

type SubscriptionType string

const (
	TypeFree  SubscriptionType = "free"
	TypePaid  SubscriptionType = "paid"
	TypePromo SubscriptionType = "promo"
)

type PlanInterval string

const (
	PlanMonthly PlanInterval = "monthly"
	PlanAnnual  PlanInterval = "annual"
	PlanFree    PlanInterval = "free"
)

// User carries the account identity plus a snapshot of the last known
// Stripe subscription state. Stripe is the source of truth; these fields
// are a read-optimized cache updated by the webhook pipeline.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Email    string `json:"email" gorm:"uniqueIndex"`
	Password string `json:"-"`
	UserName string `json:"username"`
	Role     Role   `json:"role" gorm:"type:varchar(20);default:'USER'"`

	StripeCustomerId     string `json:"stripeCustomerId"`
	StripeSubscriptionId string `json:"stripeSubscriptionId"`
	StripePriceId        string `json:"stripePriceId"`

	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus" gorm:"type:varchar(20);default:'free'"`
	SubscriptionType   SubscriptionType   `json:"subscriptionType" gorm:"type:varchar(20);default:'free'"`
	SubscriptionSource string             `json:"subscriptionSource"`
	CurrentPlan        PlanInterval       `json:"currentPlan" gorm:"type:varchar(20);default:'free'"`
	IsTrial            bool               `json:"isTrial"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`

	ActivatedAt     *time.Time `json:"activatedAt"`
	PeriodStart     *time.Time `json:"periodStart"`
	PeriodEnd       *time.Time `json:"periodEnd"`
	NextBillingDate *time.Time `json:"nextBillingDate"`
	TrialEndDate    *time.Time `json:"trialEndDate"`
	LastPaymentAt   *time.Time `json:"lastPaymentAt"`

	Amount   int    `json:"amount"`
	Currency string `json:"currency"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserCreate is the payload accepted by /register and /login.
type UserCreate struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
