package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

const userColumns = `id, username, COALESCE(email, ''), name, role, password_hash, created_at`

func scanUser(row scanner) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Name, &role, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateUser")
	defer span.End()

	var email sql.NullString
	if u.Email != "" {
		email = sql.NullString{String: u.Email, Valid: true}
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.Username, email, u.Name, string(u.Role), u.PasswordHash)
	out, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "user", 0, "create")
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError(err, "user", id, "get")
	}
	return u, nil
}

func (s *Store) getUserBy(ctx context.Context, column, value string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM users WHERE lower(%s) = lower($1)`, userColumns, column), value)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUserBy(ctx, "username", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, nil
	}
	return s.getUserBy(ctx, "email", email)
}

func (s *Store) ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// DeleteUser removes an account that never got linked anywhere, such as a
// partner user whose invite was claimed concurrently.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return nil
}

// ============================================================
// Brands
// ============================================================

const brandColumns = `id, owner_id, name, plan, active, created_at`

func scanBrand(row scanner) (*domain.Brand, error) {
	var b domain.Brand
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Plan, &b.Active, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO brands (owner_id, name, plan, active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+brandColumns,
		b.OwnerID, b.Name, b.Plan, b.Active)
	out, err := scanBrand(row)
	if err != nil {
		return nil, mapError(err, "brand", 0, "create")
	}
	return out, nil
}

func (s *Store) GetBrand(ctx context.Context, id int64) (*domain.Brand, error) {
	b, err := scanBrand(s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "brand", id, "get")
	}
	return b, nil
}

func (s *Store) GetBrandByOwner(ctx context.Context, ownerID int64) (*domain.Brand, error) {
	b, err := scanBrand(s.db.QueryRowContext(ctx, `SELECT `+brandColumns+` FROM brands WHERE owner_id = $1`, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get brand by owner: %w", err)
	}
	return b, nil
}

func (s *Store) ListBrands(ctx context.Context) ([]domain.Brand, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+brandColumns+` FROM brands ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()

	out := []domain.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
