package stripe

import (
	"testing"
	"time"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/models"
	"github.com/jsonmack1/Bulwinkle-Plan-sub003/testutils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func classifiedFixture() ClassifiedSubscription {
	end := time.Unix(1702592000, 0).UTC()
	start := time.Unix(1700000000, 0).UTC()
	return ClassifiedSubscription{
		SubscriptionID:  "sub_123",
		CustomerID:      "cus_123",
		PriceID:         "price_123",
		IsActive:        true,
		Type:            models.TypePaid,
		Source:          "payment",
		Plan:            models.PlanMonthly,
		StartDate:       &start,
		EndDate:         &end,
		NextBillingDate: &end,
		Amount:          999,
		Currency:        "usd",
	}
}

func expectSnapshotWrite(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "subscription_events" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("aaaaaaaa-0000-0000-0000-000000000001"))
	mock.ExpectCommit()
}

func TestApplySubscription_WritesSnapshotAndAudit(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	expectSnapshotWrite(mock)

	user := &models.User{ID: "11111111-1111-1111-1111-111111111111"}
	updated, err := ApplySubscription(user, classifiedFixture(), "customer.subscription.updated", "evt_1", time.Unix(1700000100, 0).UTC())

	assert.NoError(t, err)
	assert.Equal(t, models.StatusPremium, updated.SubscriptionStatus)
	assert.Equal(t, models.TypePaid, updated.SubscriptionType)
	assert.Equal(t, "sub_123", updated.StripeSubscriptionId)
	assert.Equal(t, "cus_123", updated.StripeCustomerId)
	assert.Equal(t, models.PlanMonthly, updated.CurrentPlan)
	assert.NotNil(t, updated.ActivatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySubscription_Idempotent(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	expectSnapshotWrite(mock)
	expectSnapshotWrite(mock)

	classified := classifiedFixture()
	eventAt := time.Unix(1700000100, 0).UTC()
	activated := time.Unix(1690000000, 0).UTC()

	first := models.User{ID: "11111111-1111-1111-1111-111111111111", ActivatedAt: &activated}
	second := first

	got1, err1 := ApplySubscription(&first, classified, "checkout.session.completed", "evt_dup", eventAt)
	got2, err2 := ApplySubscription(&second, classified, "checkout.session.completed", "evt_dup", eventAt)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	// same event applied twice leaves the user row identical; only the
	// audit log grew by one row per application
	assert.Equal(t, *got1, *got2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySubscription_TrialingIsPremium(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	expectSnapshotWrite(mock)

	classified := classifiedFixture()
	classified.IsTrialing = true
	trialEnd := time.Unix(1701000000, 0).UTC()
	classified.TrialEnd = &trialEnd

	user := &models.User{ID: "11111111-1111-1111-1111-111111111111"}
	updated, err := ApplySubscription(user, classified, "customer.subscription.created", "evt_2", time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, models.StatusPremium, updated.SubscriptionStatus)
	assert.True(t, updated.IsTrial)
	assert.Equal(t, &trialEnd, updated.TrialEndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySubscription_VanishedRowFails(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	user := &models.User{ID: "11111111-1111-1111-1111-111111111111"}
	_, err := ApplySubscription(user, classifiedFixture(), "customer.subscription.updated", "evt_3", time.Now().UTC())

	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevertToFree_ClearsSnapshot(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	expectSnapshotWrite(mock)

	end := time.Unix(1702592000, 0).UTC()
	user := &models.User{
		ID:                   "11111111-1111-1111-1111-111111111111",
		StripeSubscriptionId: "sub_123",
		SubscriptionStatus:   models.StatusPremium,
		SubscriptionType:     models.TypePaid,
		CurrentPlan:          models.PlanMonthly,
		CancelAtPeriodEnd:    true,
		PeriodEnd:            &end,
		Amount:               999,
		Currency:             "usd",
	}

	updated, err := RevertToFree(user, "customer.subscription.deleted", "evt_4", time.Now().UTC())

	assert.NoError(t, err)
	assert.Equal(t, models.StatusFree, updated.SubscriptionStatus)
	assert.Equal(t, models.TypeFree, updated.SubscriptionType)
	assert.Equal(t, "", updated.StripeSubscriptionId)
	assert.False(t, updated.CancelAtPeriodEnd)
	assert.Nil(t, updated.PeriodEnd)
	assert.Equal(t, 0, updated.Amount)
	assert.Equal(t, "", updated.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}
