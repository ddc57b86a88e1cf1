package promos

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/testutils"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()

	log.SetOutput(io.Discard)

	exitCode := m.Run()

	log.SetOutput(os.Stdout)

	os.Exit(exitCode)
}

func postJSON(path string, payload interface{}) (*http.Request, error) {
	jsonData, _ := json.Marshal(payload)
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(jsonData))
	if req != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, err
}

func TestValidatePromoCode_Unknown(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "promo_codes" WHERE code = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))

	r := testutils.SetupTestRouter()
	r.POST("/promos/validate", ValidatePromoCode)

	req, _ := postJSON("/promos/validate", map[string]string{"code": "NOPE"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &body)
	assert.Equal(t, ErrUnknownPromoCode.Error(), body["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidatePromoCode_Expired(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	past := time.Now().Add(-24 * time.Hour)
	mock.ExpectQuery(`SELECT (.+) FROM "promo_codes" WHERE code = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "code", "benefit", "discount_percent", "active", "valid_until"}).
			AddRow("11111111-1111-1111-1111-111111111111", "OLD50", "discount_percent", 50, true, past))

	r := testutils.SetupTestRouter()
	r.POST("/promos/validate", ValidatePromoCode)

	req, _ := postJSON("/promos/validate", map[string]string{"code": "OLD50"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &body)
	assert.Equal(t, ErrPromoExpired.Error(), body["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidatePromoCode_Exhausted(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "promo_codes" WHERE code = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "code", "benefit", "trial_days", "active", "max_uses", "used_count"}).
			AddRow("11111111-1111-1111-1111-111111111111", "TRY30", "free_trial", 30, true, 100, 100))

	r := testutils.SetupTestRouter()
	r.POST("/promos/validate", ValidatePromoCode)

	req, _ := postJSON("/promos/validate", map[string]string{"code": "TRY30"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &body)
	assert.Equal(t, ErrPromoExhausted.Error(), body["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidatePromoCode_ValidTrialCode(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "promo_codes" WHERE code = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "code", "benefit", "trial_days", "active", "max_uses", "used_count"}).
			AddRow("11111111-1111-1111-1111-111111111111", "TRY30", "free_trial", 30, true, 100, 10))

	r := testutils.SetupTestRouter()
	r.POST("/promos/validate", ValidatePromoCode)

	req, _ := postJSON("/promos/validate", map[string]string{"code": "TRY30"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	json.Unmarshal(resp.Body.Bytes(), &body)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "free_trial", data["benefit"])
	assert.Equal(t, float64(30), data["trialDays"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePromoCode_MixedBenefitRejected(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	r := testutils.SetupTestRouter()
	r.POST("/promos", CreatePromoCode)

	// free_subscription must never also carry a discount percent
	req, _ := postJSON("/promos", map[string]interface{}{
		"code":            "AMBIGUOUS",
		"benefit":         "free_subscription",
		"freeMonths":      1,
		"discountPercent": 50,
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	// rejected at configuration time: nothing was written
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePromoCode_TrialCodeCreated(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "promo_codes" WHERE code = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "promo_codes" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("22222222-2222-2222-2222-222222222222"))
	mock.ExpectCommit()

	r := testutils.SetupTestRouter()
	r.POST("/promos", CreatePromoCode)

	req, _ := postJSON("/promos", map[string]interface{}{
		"code":      "TRY14",
		"benefit":   "free_trial",
		"trialDays": 14,
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePromoCode_DuplicateCode(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "promo_codes" WHERE code = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "code"}).
			AddRow("22222222-2222-2222-2222-222222222222", "TRY14"))

	r := testutils.SetupTestRouter()
	r.POST("/promos", CreatePromoCode)

	req, _ := postJSON("/promos", map[string]interface{}{
		"code":      "TRY14",
		"benefit":   "free_trial",
		"trialDays": 14,
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
