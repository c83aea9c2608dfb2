package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

const postColumns = `id, brand_id, creator_id, title, body, media_urls, platforms, status,
	is_evergreen, scheduled_date, published_date, metadata, created_at, updated_at`

func scanPost(row scanner) (*domain.ContentPost, error) {
	var p domain.ContentPost
	var mediaURLs, platforms pq.StringArray
	var status string
	var scheduled, published sql.NullTime
	var metadata []byte
	if err := row.Scan(&p.ID, &p.BrandID, &p.CreatorID, &p.Title, &p.Body, &mediaURLs, &platforms,
		&status, &p.IsEvergreen, &scheduled, &published, &metadata, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.MediaURLs = []string(mediaURLs)
	p.Platforms = platformsFrom(platforms)
	p.Status = domain.PostStatus(status)
	p.ScheduledDate = timePtr(scheduled)
	p.PublishedDate = timePtr(published)
	p.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode post metadata: %w", err)
		}
	}
	return &p, nil
}

func encodeMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (s *Store) CreatePost(ctx context.Context, p *domain.ContentPost) (*domain.ContentPost, error) {
	ctx, span := tracer.Start(ctx, "Store.CreatePost")
	defer span.End()

	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode post metadata: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO content_posts (brand_id, creator_id, title, body, media_urls, platforms, status,
			is_evergreen, scheduled_date, published_date, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+postColumns,
		p.BrandID, p.CreatorID, p.Title, p.Body, stringArray(p.MediaURLs), platformArray(p.Platforms),
		string(p.Status), p.IsEvergreen, nullTime(p.ScheduledDate), nullTime(p.PublishedDate), metadata)
	out, err := scanPost(row)
	if err != nil {
		return nil, mapError(err, "content post", 0, "create")
	}
	return out, nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (*domain.ContentPost, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM content_posts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "content post", id, "get")
	}
	return p, nil
}

func (s *Store) ListPosts(ctx context.Context, scope domain.TenantScope) ([]domain.ContentPost, error) {
	where, args, ok := scopeClause(scope, "brand_id")
	if !ok {
		return []domain.ContentPost{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM content_posts`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out := []domain.ContentPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePost(ctx context.Context, p *domain.ContentPost) (*domain.ContentPost, error) {
	metadata, err := encodeMetadata(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode post metadata: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE content_posts
		SET title = $2, body = $3, media_urls = $4, platforms = $5, status = $6, is_evergreen = $7,
			scheduled_date = $8, published_date = $9, metadata = $10, updated_at = $11
		WHERE id = $1
		RETURNING `+postColumns,
		p.ID, p.Title, p.Body, stringArray(p.MediaURLs), platformArray(p.Platforms), string(p.Status),
		p.IsEvergreen, nullTime(p.ScheduledDate), nullTime(p.PublishedDate), metadata, p.UpdatedAt)
	out, err := scanPost(row)
	if err != nil {
		return nil, mapError(err, "content post", p.ID, "update")
	}
	return out, nil
}

// DeletePost removes the post; its assignments follow through ON DELETE CASCADE.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "content post", ID: id}
	}
	return nil
}

// ============================================================
// Post assignments
// ============================================================

const assignmentColumns = `id, post_id, partner_id, status, custom_footer, custom_tags, external_id,
	platform_posts, published_url, published_date, last_error, created_at, updated_at`

func scanAssignment(row scanner) (*domain.PostAssignment, error) {
	var a domain.PostAssignment
	var status string
	var tags pq.StringArray
	var platformPosts []byte
	var published sql.NullTime
	if err := row.Scan(&a.ID, &a.PostID, &a.PartnerID, &status, &a.CustomFooter, &tags, &a.ExternalID,
		&platformPosts, &a.PublishedURL, &published, &a.LastError, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Status = domain.AssignmentStatus(status)
	a.CustomTags = []string(tags)
	a.PublishedDate = timePtr(published)
	if len(platformPosts) > 0 {
		if err := json.Unmarshal(platformPosts, &a.PlatformPosts); err != nil {
			return nil, fmt.Errorf("decode platform posts: %w", err)
		}
	}
	return &a, nil
}

func encodePlatformPosts(m map[domain.Platform]string) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (s *Store) CreateAssignment(ctx context.Context, a *domain.PostAssignment) (*domain.PostAssignment, error) {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO post_assignments (post_id, partner_id, status, custom_footer, custom_tags)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+assignmentColumns,
		a.PostID, a.PartnerID, string(a.Status), a.CustomFooter, stringArray(a.CustomTags))
	out, err := scanAssignment(row)
	if err != nil {
		return nil, mapError(err, "post assignment", 0, "create")
	}
	return out, nil
}

func (s *Store) GetAssignment(ctx context.Context, id int64) (*domain.PostAssignment, error) {
	a, err := scanAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM post_assignments WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "post assignment", id, "get")
	}
	return a, nil
}

func (s *Store) listAssignments(ctx context.Context, column string, id int64) ([]domain.PostAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM post_assignments WHERE `+column+` = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	out := []domain.PostAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) ListAssignmentsByPost(ctx context.Context, postID int64) ([]domain.PostAssignment, error) {
	return s.listAssignments(ctx, "post_id", postID)
}

func (s *Store) ListAssignmentsByPartner(ctx context.Context, partnerID int64) ([]domain.PostAssignment, error) {
	return s.listAssignments(ctx, "partner_id", partnerID)
}

// UpdateAssignment never rewrites post_id or partner_id.
func (s *Store) UpdateAssignment(ctx context.Context, a *domain.PostAssignment) (*domain.PostAssignment, error) {
	platformPosts, err := encodePlatformPosts(a.PlatformPosts)
	if err != nil {
		return nil, fmt.Errorf("encode platform posts: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`UPDATE post_assignments
		SET status = $2, custom_footer = $3, custom_tags = $4, external_id = $5, platform_posts = $6,
			published_url = $7, published_date = $8, last_error = $9, updated_at = $10
		WHERE id = $1
		RETURNING `+assignmentColumns,
		a.ID, string(a.Status), a.CustomFooter, stringArray(a.CustomTags), a.ExternalID, platformPosts,
		a.PublishedURL, nullTime(a.PublishedDate), a.LastError, a.UpdatedAt)
	out, err := scanAssignment(row)
	if err != nil {
		return nil, mapError(err, "post assignment", a.ID, "update")
	}
	return out, nil
}
