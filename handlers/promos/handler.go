package promos

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/db"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/utils"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/coupon"
)

type validateInput struct {
	Code string `json:"code" binding:"required"`
}

// ValidatePromoCode checks a code at checkout time
// @Summary Validate a promo code
// @Description Check a promo code before checkout and return its benefit
// @Tags promos
// @Accept json
// @Produce json
// @Param body body validateInput true "Promo code"
// @Success 200 {object} utils.Response "data: benefit descriptor"
// @Failure 400 {object} utils.Response "error: Unknown, expired or exhausted code"
// @Router /promos/validate [post]
func ValidatePromoCode(c *gin.Context) {
	var input validateInput
	if !utils.ValidateRequestBody(c, &input) {
		return
	}

	promo, err := ResolveCode(strings.TrimSpace(input.Code), "")
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, ErrUnknownPromoCode) && !errors.Is(err, ErrPromoExpired) && !errors.Is(err, ErrPromoExhausted) {
			utils.LogError(err, "Error resolving promo code in ValidatePromoCode")
			status = http.StatusInternalServerError
			err = errors.New("error validating promo code")
		}
		utils.SendError(c, status, err.Error())
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Promo code is valid", gin.H{
		"code":            promo.Code,
		"benefit":         promo.Benefit,
		"discountPercent": promo.DiscountPercent,
		"discountAmount":  promo.DiscountAmount,
		"trialDays":       promo.TrialDaysGranted(),
	})
}

// CreatePromoCode registers a new promo code
// @Summary Create a promo code
// @Description Create a promo code with exactly one benefit mechanism. Discount codes get a Stripe coupon created alongside.
// @Tags promos
// @Accept json
// @Produce json
// @Param body body models.PromoCode true "Promo code configuration"
// @Security BearerAuth
// @Success 201 {object} utils.Response
// @Failure 400 {object} utils.Response "error: Mixed or invalid benefit configuration"
// @Failure 409 {object} utils.Response "error: Code already exists"
// @Router /promos [post]
func CreatePromoCode(c *gin.Context) {
	var promo models.PromoCode
	if !utils.ValidateRequestBody(c, &promo) {
		return
	}

	promo.Code = strings.TrimSpace(promo.Code)
	if promo.Code == "" {
		utils.SendError(c, http.StatusBadRequest, "The code cannot be empty")
		return
	}

	// Mixed discount+trial configurations are rejected here, at
	// configuration time, never at checkout.
	if err := promo.Validate(); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}

	var existing models.PromoCode
	if err := db.DB.Where("code = ?", promo.Code).First(&existing).Error; err == nil {
		utils.SendError(c, http.StatusConflict, "This code already exists")
		return
	}

	// Discount-mechanism codes are applied through a Stripe coupon at
	// checkout; create it now so a misconfigured Stripe key fails the
	// admin call instead of a customer checkout.
	if promo.Benefit == models.BenefitDiscountPercent || promo.Benefit == models.BenefitDiscountAmount {
		stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
		params := &stripe.CouponParams{
			Name:     stripe.String(promo.Code),
			Duration: stripe.String(string(stripe.CouponDurationForever)),
		}
		if promo.Benefit == models.BenefitDiscountPercent {
			params.PercentOff = stripe.Float64(float64(promo.DiscountPercent))
		} else {
			params.AmountOff = stripe.Int64(int64(promo.DiscountAmount))
			params.Currency = stripe.String("usd")
		}
		cpn, err := coupon.New(params)
		if err != nil {
			utils.LogError(err, "Error creating the Stripe coupon in CreatePromoCode")
			utils.SendError(c, http.StatusInternalServerError, "Error creating the Stripe coupon")
			return
		}
		promo.StripeCouponId = cpn.ID
	}

	promo.UsedCount = 0
	promo.Active = true

	if err := db.DB.Create(&promo).Error; err != nil {
		utils.LogError(err, "Error creating promo code in CreatePromoCode")
		utils.SendError(c, http.StatusInternalServerError, "Error creating promo code")
		return
	}

	utils.LogSuccess("Promo code created: " + promo.Code)
	utils.SendSuccess(c, http.StatusCreated, "Promo code created successfully", promo)
}

// ListPromoCodes lists all promo codes
// @Summary List promo codes
// @Description Return all promo codes with their usage counters
// @Tags promos
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PromoCode
// @Router /promos [get]
func ListPromoCodes(c *gin.Context) {
	var promos []models.PromoCode
	if err := db.DB.Order("created_at DESC").Find(&promos).Error; err != nil {
		utils.LogError(err, "Error listing promo codes in ListPromoCodes")
		utils.SendError(c, http.StatusInternalServerError, "Error fetching promo codes")
		return
	}
	c.JSON(http.StatusOK, promos)
}
