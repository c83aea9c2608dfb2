package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewStore(db), mock, db
}

var partnerCols = []string{
	"id", "brand_id", "name", "contact_name", "contact_email", "contact_phone", "address",
	"footer_template", "status", "user_id", "connection_date", "tags", "created_at", "updated_at",
}

func TestListPartners(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()

	t.Run("brand scope filters by brand_id", func(t *testing.T) {
		rows := sqlmock.NewRows(partnerCols).
			AddRow(1, 7, "Acme", "", "a@acme.test", "", "", "", "pending", nil, nil, "{north}", now, now).
			AddRow(2, 7, "Bolt", "Bea", "b@bolt.test", "", "", "", "active", int64(33), now, "{}", now, now)

		mock.ExpectQuery(`SELECT .+ FROM retail_partners WHERE brand_id = \$1 ORDER BY id`).
			WithArgs(int64(7)).
			WillReturnRows(rows)

		partners, err := store.ListPartners(ctx, domain.SingleTenant(7))
		require.NoError(t, err)
		require.Len(t, partners, 2)
		assert.Equal(t, domain.PartnerPending, partners[0].Status)
		assert.Nil(t, partners[0].ConnectionDate)
		assert.Equal(t, []string{"north"}, partners[0].Metadata.Tags)
		require.NotNil(t, partners[1].UserID)
		assert.Equal(t, int64(33), *partners[1].UserID)
		assert.NotNil(t, partners[1].ConnectionDate)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("all tenants has no filter", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM retail_partners ORDER BY id`).
			WillReturnRows(sqlmock.NewRows(partnerCols))

		partners, err := store.ListPartners(ctx, domain.AllTenants())
		require.NoError(t, err)
		assert.Empty(t, partners)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty scope never queries", func(t *testing.T) {
		partners, err := store.ListPartners(ctx, domain.NoTenant())
		require.NoError(t, err)
		assert.Empty(t, partners)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetPartner_NotFound(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM retail_partners WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetPartner(context.Background(), 404)
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "expected ErrNotFound, got %v", err)
	assert.Equal(t, int64(404), nf.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPartnerByUser_Missing(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM retail_partners WHERE user_id = \$1`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(partnerCols))

	p, err := store.GetPartnerByUser(context.Background(), 5)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUpdatePartner_NeverWritesBrand(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectQuery(`UPDATE retail_partners\s+SET name = \$2, contact_name = \$3`).
		WithArgs(int64(1), "Acme", "", "a@acme.test", "", "", "", "active", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(partnerCols).
			AddRow(1, 7, "Acme", "", "a@acme.test", "", "", "", "active", nil, now, "{}", now, now))

	out, err := store.UpdatePartner(context.Background(), &domain.RetailPartner{
		ID: 1, BrandID: 999, Name: "Acme", ContactEmail: "a@acme.test", Status: domain.PartnerActive,
		ConnectionDate: &now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.BrandID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePartner(t *testing.T) {
	ctx := context.Background()

	t.Run("restricted while social accounts exist", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM social_accounts WHERE partner_id = $1`)).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		err := store.DeletePartner(ctx, 3)
		var conflict *domain.ErrConflict
		require.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes when unreferenced", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM social_accounts WHERE partner_id = $1`)).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM retail_partners WHERE id = $1`)).
			WithArgs(int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.DeletePartner(ctx, 3))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		store, mock, db := newMockStore(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM social_accounts`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM retail_partners`)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.DeletePartner(ctx, 3)
		var nf *domain.ErrNotFound
		assert.True(t, errors.As(err, &nf))
	})
}

func TestCreateAssignment_DuplicatePairConflicts(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO post_assignments`).
		WithArgs(int64(1), int64(2), "pending", "", pq.StringArray{}).
		WillReturnError(&pq.Error{Code: codeUniqueViolation})

	_, err := store.CreateAssignment(context.Background(), &domain.PostAssignment{
		PostID: 1, PartnerID: 2, Status: domain.AssignmentPending,
	})
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAssignment_StoresPlatformPosts(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectQuery(`UPDATE post_assignments\s+SET status = \$2, custom_footer = \$3, custom_tags = \$4, external_id = \$5, platform_posts = \$6`).
		WithArgs(int64(5), "failed", "", sqlmock.AnyArg(), "fb_1", []byte(`{"facebook":"fb_1"}`),
			"", nil, "boom", now).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "post_id", "partner_id", "status", "custom_footer", "custom_tags", "external_id",
			"platform_posts", "published_url", "published_date", "last_error", "created_at", "updated_at",
		}).AddRow(5, 1, 2, "failed", "", "{}", "fb_1", []byte(`{"facebook":"fb_1"}`), "", nil, "boom", now, now))

	a, err := store.UpdateAssignment(context.Background(), &domain.PostAssignment{
		ID:            5,
		Status:        domain.AssignmentFailed,
		ExternalID:    "fb_1",
		PlatformPosts: map[domain.Platform]string{domain.PlatformFacebook: "fb_1"},
		LastError:     "boom",
		UpdatedAt:     now,
	})
	require.NoError(t, err)
	assert.Equal(t, map[domain.Platform]string{domain.PlatformFacebook: "fb_1"}, a.PlatformPosts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSocialAccounts_JoinsThroughPartner(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	now := time.Now()

	mock.ExpectQuery(`FROM social_accounts sa\s+JOIN retail_partners rp ON rp.id = sa.partner_id WHERE rp.brand_id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "partner_id", "platform", "external_account_id", "account_name",
			"access_token", "refresh_token", "token_expiry", "status", "created_at",
		}).AddRow(4, 2, "facebook", "page-1", "Acme Page", "tok", "", nil, "active", now))

	accounts, err := store.ListSocialAccounts(context.Background(), domain.SingleTenant(9))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, domain.PlatformFacebook, accounts[0].Platform)
	assert.Nil(t, accounts[0].TokenExpiry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkInviteUsed_SecondUseConflicts(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE invites SET used_at = $2 WHERE id = $1 AND used_at IS NULL`)).
		WithArgs("jti", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkInviteUsed(context.Background(), "jti", at)
	var conflict *domain.ErrConflict
	assert.True(t, errors.As(err, &conflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.DeleteUser(context.Background(), 9))
	err := store.DeleteUser(context.Background(), 9)
	var nf *domain.ErrNotFound
	assert.True(t, errors.As(err, &nf))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessions(t *testing.T) {
	store, mock, db := newMockStore(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id, impersonated_brand_id, created_at, expires_at\s+FROM sessions WHERE id = \$1 AND expires_at > now\(\)`).
		WithArgs("sid").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "impersonated_brand_id", "created_at", "expires_at"}).
			AddRow("sid", 1, 12, now, now.Add(time.Hour)))

	sess, err := store.GetSession(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, int64(12), sess.ImpersonatedBrandID)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM sessions WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	up.Close()
	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	down.Close()

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
}
