package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

const partnerColumns = `id, brand_id, name, contact_name, contact_email, contact_phone, address,
	footer_template, status, user_id, connection_date, tags, created_at, updated_at`

func scanPartner(row scanner) (*domain.RetailPartner, error) {
	var p domain.RetailPartner
	var status string
	var userID sql.NullInt64
	var connected sql.NullTime
	var tags pq.StringArray
	if err := row.Scan(&p.ID, &p.BrandID, &p.Name, &p.ContactName, &p.ContactEmail, &p.ContactPhone,
		&p.Address, &p.FooterTemplate, &status, &userID, &connected, &tags, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = domain.PartnerStatus(status)
	p.UserID = int64Ptr(userID)
	p.ConnectionDate = timePtr(connected)
	p.Metadata.Tags = []string(tags)
	return &p, nil
}

func (s *Store) CreatePartner(ctx context.Context, p *domain.RetailPartner) (*domain.RetailPartner, error) {
	ctx, span := tracer.Start(ctx, "Store.CreatePartner")
	defer span.End()

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO retail_partners (brand_id, name, contact_name, contact_email, contact_phone,
			address, footer_template, status, user_id, connection_date, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+partnerColumns,
		p.BrandID, p.Name, p.ContactName, p.ContactEmail, p.ContactPhone, p.Address, p.FooterTemplate,
		string(p.Status), nullInt64(p.UserID), nullTime(p.ConnectionDate), stringArray(p.Metadata.Tags))
	out, err := scanPartner(row)
	if err != nil {
		return nil, mapError(err, "retail partner", 0, "create")
	}
	return out, nil
}

func (s *Store) GetPartner(ctx context.Context, id int64) (*domain.RetailPartner, error) {
	p, err := scanPartner(s.db.QueryRowContext(ctx,
		`SELECT `+partnerColumns+` FROM retail_partners WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "retail partner", id, "get")
	}
	return p, nil
}

func (s *Store) GetPartnerByUser(ctx context.Context, userID int64) (*domain.RetailPartner, error) {
	p, err := scanPartner(s.db.QueryRowContext(ctx,
		`SELECT `+partnerColumns+` FROM retail_partners WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get partner by user: %w", err)
	}
	return p, nil
}

func (s *Store) ListPartners(ctx context.Context, scope domain.TenantScope) ([]domain.RetailPartner, error) {
	ctx, span := tracer.Start(ctx, "Store.ListPartners")
	defer span.End()

	where, args, ok := scopeClause(scope, "brand_id")
	if !ok {
		return []domain.RetailPartner{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+partnerColumns+` FROM retail_partners`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	out := []domain.RetailPartner{}
	for rows.Next() {
		p, err := scanPartner(rows)
		if err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePartner writes every mutable column. brand_id is never part of the SET list.
func (s *Store) UpdatePartner(ctx context.Context, p *domain.RetailPartner) (*domain.RetailPartner, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE retail_partners
		SET name = $2, contact_name = $3, contact_email = $4, contact_phone = $5, address = $6,
			footer_template = $7, status = $8, user_id = $9, connection_date = $10, tags = $11,
			updated_at = $12
		WHERE id = $1
		RETURNING `+partnerColumns,
		p.ID, p.Name, p.ContactName, p.ContactEmail, p.ContactPhone, p.Address, p.FooterTemplate,
		string(p.Status), nullInt64(p.UserID), nullTime(p.ConnectionDate), stringArray(p.Metadata.Tags),
		p.UpdatedAt)
	out, err := scanPartner(row)
	if err != nil {
		return nil, mapError(err, "retail partner", p.ID, "update")
	}
	return out, nil
}

// DeletePartner refuses while social accounts exist; assignments and invites
// go with the row through ON DELETE CASCADE.
func (s *Store) DeletePartner(ctx context.Context, id int64) error {
	var accounts int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM social_accounts WHERE partner_id = $1`, id).Scan(&accounts); err != nil {
		return fmt.Errorf("count social accounts: %w", err)
	}
	if accounts > 0 {
		return &domain.ErrConflict{Message: "retail partner still has connected social accounts"}
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM retail_partners WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == codeForeignKeyViolation {
			return &domain.ErrConflict{Message: "retail partner still has connected social accounts"}
		}
		return fmt.Errorf("delete partner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "retail partner", ID: id}
	}
	return nil
}
