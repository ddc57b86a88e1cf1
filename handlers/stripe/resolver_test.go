package stripe

import (
	"errors"
	"io"
	"log"
	"os"
	"testing"

	"github.com/jsonmack1/Bulwinkle-Plan-sub003/testutils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var errDuplicateEmail = errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`)

func TestMain(m *testing.M) {
	testutils.InitTestMain()

	log.SetOutput(io.Discard)

	exitCode := m.Run()

	log.SetOutput(os.Stdout)

	os.Exit(exitCode)
}

func TestResolveIdentity_InternalIDWinsOverEmail(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// the payer's Stripe-side email belongs to somebody else's account;
	// only the id lookup runs, never the email one
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email", "stripe_customer_id"}).
			AddRow("11111111-1111-1111-1111-111111111111", "payer@example.com", "cus_123"))

	user, err := ResolveIdentity("11111111-1111-1111-1111-111111111111", "somebody.else@example.com", "cus_123")
	assert.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", user.ID)
	assert.Equal(t, "payer@example.com", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveIdentity_BackfillsCustomerId(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email", "stripe_customer_id"}).
			AddRow("11111111-1111-1111-1111-111111111111", "payer@example.com", ""))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := ResolveIdentity("11111111-1111-1111-1111-111111111111", "", "cus_123")
	assert.NoError(t, err)
	assert.Equal(t, "cus_123", user.StripeCustomerId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveIdentity_StaleIDFallsBackToEmail(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE email = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email", "stripe_customer_id"}).
			AddRow("22222222-2222-2222-2222-222222222222", "a@example.com", "cus_123"))

	user, err := ResolveIdentity("11111111-1111-1111-1111-111111111111", "a@example.com", "cus_123")
	assert.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveIdentity_MalformedIDSkipsLookup(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// garbage metadata never reaches the database as an id filter
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE email = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email"}).
			AddRow("22222222-2222-2222-2222-222222222222", "a@example.com"))

	user, err := ResolveIdentity("not-a-uuid", "a@example.com", "")
	assert.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUser_InsufficientIdentity(t *testing.T) {
	_, _, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	user, err := ResolveUser("", "")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrInsufficientIdentity)
}

func TestResolveUser_FoundByEmailBackfillsCustomerId(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE email = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email", "stripe_customer_id"}).
			AddRow("11111111-1111-1111-1111-111111111111", "a@example.com", ""))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := ResolveUser("a@example.com", "cus_123")
	assert.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", user.ID)
	assert.Equal(t, "cus_123", user.StripeCustomerId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUser_FoundByCustomerId(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE stripe_customer_id = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email", "stripe_customer_id"}).
			AddRow("11111111-1111-1111-1111-111111111111", "a@example.com", "cus_123"))

	user, err := ResolveUser("", "cus_123")
	assert.NoError(t, err)
	assert.Equal(t, "cus_123", user.StripeCustomerId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUser_CreatesUserFromEmail(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE email = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE stripe_customer_id = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("22222222-2222-2222-2222-222222222222"))
	mock.ExpectCommit()

	user, err := ResolveUser("new.teacher@example.com", "cus_456")
	assert.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", user.ID)
	assert.Equal(t, "new.teacher@example.com", user.Email)
	assert.Equal(t, "new.teacher", user.UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUser_DuplicateInsertRefetches(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE email = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))

	// the concurrent delivery won the insert race
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users" (.+) RETURNING "id"`).
		WillReturnError(errDuplicateEmail)
	mock.ExpectRollback()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE email = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id", "email"}).
			AddRow("33333333-3333-3333-3333-333333333333", "a@example.com"))

	user, err := ResolveUser("a@example.com", "")
	assert.NoError(t, err)
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveUser_CustomerIdOnlyNeverCreates(t *testing.T) {
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE stripe_customer_id = (.+)`).
		WillReturnRows(mock.NewRows([]string{"id"}))

	user, err := ResolveUser("", "cus_789")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUserNotResolvable)
	assert.NoError(t, mock.ExpectationsWereMet())
}
