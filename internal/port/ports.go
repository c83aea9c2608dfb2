// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
//
// Lookups by id return *domain.ErrNotFound when the row does not exist.
// Lookups by a secondary key (username, email, owner, linked user) return
// (nil, nil) when nothing matches.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

// Cache provides generic caching with per-entry expiry.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	SetUntil(key string, value T, expiresAt time.Time)
	Delete(key string)
	Prune(now time.Time) int
}

// UserStore is the identity store.
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsersByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// BrandStore holds tenants.
type BrandStore interface {
	CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, error)
	GetBrand(ctx context.Context, id int64) (*domain.Brand, error)
	GetBrandByOwner(ctx context.Context, ownerID int64) (*domain.Brand, error)
	ListBrands(ctx context.Context) ([]domain.Brand, error)
}

// PartnerStore holds retail partners.
type PartnerStore interface {
	CreatePartner(ctx context.Context, p *domain.RetailPartner) (*domain.RetailPartner, error)
	GetPartner(ctx context.Context, id int64) (*domain.RetailPartner, error)
	GetPartnerByUser(ctx context.Context, userID int64) (*domain.RetailPartner, error)
	ListPartners(ctx context.Context, scope domain.TenantScope) ([]domain.RetailPartner, error)
	UpdatePartner(ctx context.Context, p *domain.RetailPartner) (*domain.RetailPartner, error)
	// DeletePartner cascades to the partner's assignments and fails with
	// *domain.ErrConflict while social accounts still reference it.
	DeletePartner(ctx context.Context, id int64) error
}

// PostStore holds content posts.
type PostStore interface {
	CreatePost(ctx context.Context, p *domain.ContentPost) (*domain.ContentPost, error)
	GetPost(ctx context.Context, id int64) (*domain.ContentPost, error)
	ListPosts(ctx context.Context, scope domain.TenantScope) ([]domain.ContentPost, error)
	UpdatePost(ctx context.Context, p *domain.ContentPost) (*domain.ContentPost, error)
	// DeletePost cascades to the post's assignments.
	DeletePost(ctx context.Context, id int64) error
}

// AssignmentStore holds post assignments.
type AssignmentStore interface {
	// CreateAssignment fails with *domain.ErrConflict when the (post, partner) pair exists.
	CreateAssignment(ctx context.Context, a *domain.PostAssignment) (*domain.PostAssignment, error)
	GetAssignment(ctx context.Context, id int64) (*domain.PostAssignment, error)
	ListAssignmentsByPost(ctx context.Context, postID int64) ([]domain.PostAssignment, error)
	ListAssignmentsByPartner(ctx context.Context, partnerID int64) ([]domain.PostAssignment, error)
	UpdateAssignment(ctx context.Context, a *domain.PostAssignment) (*domain.PostAssignment, error)
}

// SocialAccountStore holds partner social accounts.
type SocialAccountStore interface {
	CreateSocialAccount(ctx context.Context, a *domain.SocialAccount) (*domain.SocialAccount, error)
	GetSocialAccount(ctx context.Context, id int64) (*domain.SocialAccount, error)
	ListSocialAccounts(ctx context.Context, scope domain.TenantScope) ([]domain.SocialAccount, error)
	ListSocialAccountsByPartner(ctx context.Context, partnerID int64) ([]domain.SocialAccount, error)
	DeleteSocialAccount(ctx context.Context, id int64) error
}

// MediaStore holds media metadata.
type MediaStore interface {
	CreateMedia(ctx context.Context, m *domain.MediaItem) (*domain.MediaItem, error)
	GetMedia(ctx context.Context, id int64) (*domain.MediaItem, error)
	ListMedia(ctx context.Context, scope domain.TenantScope) ([]domain.MediaItem, error)
	DeleteMedia(ctx context.Context, id int64) error
}

// InviteStore records issued invites so each can be used once.
type InviteStore interface {
	CreateInvite(ctx context.Context, inv *domain.Invite) error
	// GetInvite returns (nil, nil) for an unknown id.
	GetInvite(ctx context.Context, id string) (*domain.Invite, error)
	// MarkInviteUsed fails with *domain.ErrConflict when the invite was already used.
	MarkInviteUsed(ctx context.Context, id string, at time.Time) error
}

// SessionStore persists server-side session state.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session) error
	// GetSession returns (nil, nil) for unknown or expired sessions.
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	UpdateSession(ctx context.Context, s *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Publisher pushes content to an external social network.
type Publisher interface {
	Publish(ctx context.Context, platform domain.Platform, creds domain.PublishCredentials, message, mediaURL string) (*domain.PublishResult, error)
	FetchPages(ctx context.Context, accessToken string) ([]domain.Page, error)
}

// Store is the full persistence backend.
type Store interface {
	UserStore
	BrandStore
	PartnerStore
	PostStore
	AssignmentStore
	SocialAccountStore
	MediaStore
	InviteStore

	Ping(ctx context.Context) error
	Close() error
}
