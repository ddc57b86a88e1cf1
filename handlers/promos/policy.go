package promos

import (
	"errors"
	"time"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"

	"gorm.io/gorm"
)

var (
	ErrUnknownPromoCode = errors.New("unknown promo code")
	ErrPromoExpired     = errors.New("promo code expired")
	ErrPromoExhausted   = errors.New("promo code usage limit reached")
)

// ResolveCode looks a promo code up and enforces its validity window and
// usage limits. userID may be empty (anonymous checkout-time validation);
// the per-user limit is only checked when a user is known. These are the
// only failures in the pipeline that end users ever see.
func ResolveCode(code string, userID string) (*models.PromoCode, error) {
	var promo models.PromoCode
	err := db.DB.Where("code = ?", code).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownPromoCode
		}
		return nil, err
	}

	if !promo.Active {
		return nil, ErrPromoExpired
	}

	now := time.Now().UTC()
	if promo.ValidFrom != nil && now.Before(*promo.ValidFrom) {
		return nil, ErrPromoExpired
	}
	if promo.ValidUntil != nil && now.After(*promo.ValidUntil) {
		return nil, ErrPromoExpired
	}

	if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
		return nil, ErrPromoExhausted
	}

	if userID != "" && promo.MaxUsesPerUser > 0 {
		var count int64
		err := db.DB.Model(&models.PromoRedemption{}).
			Where("promo_code_id = ? AND user_id = ?", promo.ID, userID).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count >= int64(promo.MaxUsesPerUser) {
			return nil, ErrPromoExhausted
		}
	}

	return &promo, nil
}

// RecordRedemption appends one redemption row and bumps the use counter.
func RecordRedemption(promo *models.PromoCode, userID string, fingerprint string) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		redemption := models.PromoRedemption{
			PromoCodeID: promo.ID,
			UserID:      userID,
			Fingerprint: fingerprint,
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return err
		}
		return tx.Model(&models.PromoCode{}).
			Where("id = ?", promo.ID).
			Update("used_count", gorm.Expr("used_count + 1")).Error
	})
}
