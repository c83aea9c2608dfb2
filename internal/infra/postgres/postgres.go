// Package postgres is the relational store backend (lib/pq + database/sql).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var tracer = otel.Tracer("infra/postgres")

var (
	_ port.Store        = (*Store)(nil)
	_ port.SessionStore = (*Store)(nil)
)

// PostgreSQL error codes mapped to domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements every persistence port on one *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Ping checks connectivity for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

// mapError turns driver errors into domain errors; others pass through wrapped.
func mapError(err error, resource string, id int64, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return &domain.ErrConflict{Message: fmt.Sprintf("%s already exists", resource)}
		case codeForeignKeyViolation:
			return &domain.ErrConflict{Message: fmt.Sprintf("%s references a missing or dependent row", resource)}
		}
	}
	return fmt.Errorf("%s %s: %w", op, resource, err)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	x := v.Int64
	return &x
}

func stringArray(v []string) pq.StringArray {
	if v == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(v)
}

func platformArray(ps []domain.Platform) pq.StringArray {
	out := make(pq.StringArray, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func platformsFrom(a pq.StringArray) []domain.Platform {
	out := make([]domain.Platform, len(a))
	for i, p := range a {
		out[i] = domain.Platform(p)
	}
	return out
}

// scopeClause renders the brand filter for a tenant scope. ok is false for the
// empty scope, in which case callers return no rows without querying.
func scopeClause(scope domain.TenantScope, column string) (clause string, args []any, ok bool) {
	switch scope.Kind {
	case domain.ScopeAll:
		return "", nil, true
	case domain.ScopeBrand:
		return " WHERE " + column + " = $1", []any{scope.BrandID}, true
	}
	return "", nil, false
}
