package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

const socialColumns = `sa.id, sa.partner_id, sa.platform, sa.external_account_id, sa.account_name,
	sa.access_token, sa.refresh_token, sa.token_expiry, sa.status, sa.created_at`

func scanSocialAccount(row scanner) (*domain.SocialAccount, error) {
	var a domain.SocialAccount
	var platform, status string
	var expiry sql.NullTime
	if err := row.Scan(&a.ID, &a.PartnerID, &platform, &a.ExternalAccountID, &a.AccountName,
		&a.AccessToken, &a.RefreshToken, &expiry, &status, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Platform = domain.Platform(platform)
	a.Status = domain.SocialAccountStatus(status)
	a.TokenExpiry = timePtr(expiry)
	return &a, nil
}

func (s *Store) CreateSocialAccount(ctx context.Context, a *domain.SocialAccount) (*domain.SocialAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO social_accounts AS sa (partner_id, platform, external_account_id, account_name,
			access_token, refresh_token, token_expiry, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+socialColumns,
		a.PartnerID, string(a.Platform), a.ExternalAccountID, a.AccountName, a.AccessToken,
		a.RefreshToken, nullTime(a.TokenExpiry), string(a.Status))
	out, err := scanSocialAccount(row)
	if err != nil {
		return nil, mapError(err, "social account", 0, "create")
	}
	return out, nil
}

func (s *Store) GetSocialAccount(ctx context.Context, id int64) (*domain.SocialAccount, error) {
	a, err := scanSocialAccount(s.db.QueryRowContext(ctx,
		`SELECT `+socialColumns+` FROM social_accounts sa WHERE sa.id = $1`, id))
	if err != nil {
		return nil, mapError(err, "social account", id, "get")
	}
	return a, nil
}

// ListSocialAccounts walks social_accounts → retail_partners to reach the brand.
func (s *Store) ListSocialAccounts(ctx context.Context, scope domain.TenantScope) ([]domain.SocialAccount, error) {
	where, args, ok := scopeClause(scope, "rp.brand_id")
	if !ok {
		return []domain.SocialAccount{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+socialColumns+` FROM social_accounts sa
		JOIN retail_partners rp ON rp.id = sa.partner_id`+where+` ORDER BY sa.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list social accounts: %w", err)
	}
	return collectSocialAccounts(rows)
}

func (s *Store) ListSocialAccountsByPartner(ctx context.Context, partnerID int64) ([]domain.SocialAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+socialColumns+` FROM social_accounts sa WHERE sa.partner_id = $1 ORDER BY sa.id`, partnerID)
	if err != nil {
		return nil, fmt.Errorf("list partner social accounts: %w", err)
	}
	return collectSocialAccounts(rows)
}

func collectSocialAccounts(rows *sql.Rows) ([]domain.SocialAccount, error) {
	defer rows.Close()
	out := []domain.SocialAccount{}
	for rows.Next() {
		a, err := scanSocialAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan social account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSocialAccount(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM social_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete social account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "social account", ID: id}
	}
	return nil
}

// ============================================================
// Media
// ============================================================

const mediaColumns = `id, brand_id, uploader_id, url, filename, content_type, kind, size_bytes, created_at`

func scanMedia(row scanner) (*domain.MediaItem, error) {
	var m domain.MediaItem
	if err := row.Scan(&m.ID, &m.BrandID, &m.UploaderID, &m.URL, &m.Filename, &m.ContentType,
		&m.Kind, &m.SizeBytes, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) CreateMedia(ctx context.Context, m *domain.MediaItem) (*domain.MediaItem, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO media_items (brand_id, uploader_id, url, filename, content_type, kind, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+mediaColumns,
		m.BrandID, m.UploaderID, m.URL, m.Filename, m.ContentType, m.Kind, m.SizeBytes)
	out, err := scanMedia(row)
	if err != nil {
		return nil, mapError(err, "media item", 0, "create")
	}
	return out, nil
}

func (s *Store) GetMedia(ctx context.Context, id int64) (*domain.MediaItem, error) {
	m, err := scanMedia(s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media_items WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "media item", id, "get")
	}
	return m, nil
}

func (s *Store) ListMedia(ctx context.Context, scope domain.TenantScope) ([]domain.MediaItem, error) {
	where, args, ok := scopeClause(scope, "brand_id")
	if !ok {
		return []domain.MediaItem{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+mediaColumns+` FROM media_items`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	out := []domain.MediaItem{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMedia(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "media item", ID: id}
	}
	return nil
}

// ============================================================
// Invites
// ============================================================

func (s *Store) CreateInvite(ctx context.Context, inv *domain.Invite) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invites (id, brand_id, partner_id, email, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.ID, inv.BrandID, inv.PartnerID, inv.Email, inv.CreatedBy, inv.ExpiresAt)
	if err != nil {
		return mapError(err, "invite", 0, "create")
	}
	return nil
}

func (s *Store) GetInvite(ctx context.Context, id string) (*domain.Invite, error) {
	var inv domain.Invite
	var used sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, brand_id, partner_id, email, created_by, expires_at, used_at, created_at
		FROM invites WHERE id = $1`, id).
		Scan(&inv.ID, &inv.BrandID, &inv.PartnerID, &inv.Email, &inv.CreatedBy, &inv.ExpiresAt, &used, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	inv.UsedAt = timePtr(used)
	return &inv, nil
}

// MarkInviteUsed is a compare-and-set on used_at so concurrent accepts cannot both win.
func (s *Store) MarkInviteUsed(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invites SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("mark invite used: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrConflict{Message: "invite already used"}
	}
	return nil
}

// ============================================================
// Sessions
// ============================================================

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, impersonated_brand_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.UserID, impersonation(sess), sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func impersonation(sess *domain.Session) sql.NullInt64 {
	if sess.ImpersonatedBrandID <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: sess.ImpersonatedBrandID, Valid: true}
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	var sess domain.Session
	var brandID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, impersonated_brand_id, created_at, expires_at
		FROM sessions WHERE id = $1 AND expires_at > now()`, id).
		Scan(&sess.ID, &sess.UserID, &brandID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.ImpersonatedBrandID = brandID.Int64
	return &sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET impersonated_brand_id = $2, expires_at = $3 WHERE id = $1`,
		sess.ID, impersonation(sess), sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrUnauthorized{Message: "session expired"}
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
