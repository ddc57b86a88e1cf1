package stripe

import (
	"errors"
	"strings"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInsufficientIdentity = errors.New("neither email nor customer id provided")
	ErrUserNotResolvable    = errors.New("no user matches this customer and no email to create one")
)

// ResolveIdentity maps the identities a webhook event can carry to the
// internal user row. The internal user id planted in the checkout
// metadata (and mirrored in client_reference_id) wins over email and
// customer id: the payer's Stripe-side email can legitimately differ
// from their account email, and an email-first lookup would then attach
// the subscription to whoever owns that address. A stale or malformed
// internal id falls through to the email/customer path.
func ResolveIdentity(internalID string, email string, customerID string) (*models.User, error) {
	internalID = strings.TrimSpace(internalID)
	customerID = strings.TrimSpace(customerID)

	if internalID != "" {
		if _, err := uuid.Parse(internalID); err == nil {
			var user models.User
			err := db.DB.Where("id = ?", internalID).First(&user).Error
			if err == nil {
				if customerID != "" && user.StripeCustomerId == "" {
					if err := db.DB.Model(&user).Update("stripe_customer_id", customerID).Error; err != nil {
						return nil, err
					}
					user.StripeCustomerId = customerID
				}
				return &user, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
	}

	return ResolveUser(email, customerID)
}

// ResolveUser maps a Stripe identity to the internal user row, creating
// one lazily when only an email is known. Lookup order: email first
// (backfilling the customer id if the row predates checkout), then
// customer id. A customer id alone never creates an account; a row with
// no contact identity is unusable for support and billing recovery.
func ResolveUser(email string, customerID string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	customerID = strings.TrimSpace(customerID)

	if email == "" && customerID == "" {
		return nil, ErrInsufficientIdentity
	}

	if email != "" {
		var user models.User
		err := db.DB.Where("email = ?", email).First(&user).Error
		if err == nil {
			if customerID != "" && user.StripeCustomerId == "" {
				if err := db.DB.Model(&user).Update("stripe_customer_id", customerID).Error; err != nil {
					return nil, err
				}
				user.StripeCustomerId = customerID
			}
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if customerID != "" {
		var user models.User
		err := db.DB.Where("stripe_customer_id = ?", customerID).First(&user).Error
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if email == "" {
		return nil, ErrUserNotResolvable
	}

	user := models.User{
		Email:              email,
		UserName:           utils.DisplayNameFromEmail(email),
		Role:               models.UserRole,
		StripeCustomerId:   customerID,
		SubscriptionStatus: models.StatusFree,
		SubscriptionType:   models.TypeFree,
		CurrentPlan:        models.PlanFree,
	}
	if err := db.DB.Create(&user).Error; err != nil {
		// Two webhook deliveries racing on the same new customer: the
		// unique index on email makes the insert idempotent, the loser
		// re-fetches the winner's row.
		if isDuplicateKey(err) {
			var existing models.User
			if ferr := db.DB.Where("email = ?", email).First(&existing).Error; ferr != nil {
				return nil, ferr
			}
			return &existing, nil
		}
		return nil, err
	}
	return &user, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
