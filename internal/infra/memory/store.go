// Package memory is the in-process store backend used when no database is
// configured. Every read and write copies the row so callers never share
// memory with the store.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
	"github.com/boddenberg/brand-partner-hub/internal/port"
)

var _ port.Store = (*Store)(nil)

// Store keeps every table in maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	nextID int64
	now    func() time.Time

	users       map[int64]domain.User
	brands      map[int64]domain.Brand
	partners    map[int64]domain.RetailPartner
	posts       map[int64]domain.ContentPost
	assignments map[int64]domain.PostAssignment
	accounts    map[int64]domain.SocialAccount
	media       map[int64]domain.MediaItem
	invites     map[string]domain.Invite
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		users:       map[int64]domain.User{},
		brands:      map[int64]domain.Brand{},
		partners:    map[int64]domain.RetailPartner{},
		posts:       map[int64]domain.ContentPost{},
		assignments: map[int64]domain.PostAssignment{},
		accounts:    map[int64]domain.SocialAccount{},
		media:       map[int64]domain.MediaItem{},
		invites:     map[string]domain.Invite{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ============================================================
// Users
// ============================================================

func (s *Store) CreateUser(_ context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return nil, &domain.ErrConflict{Message: "username already taken"}
		}
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return nil, &domain.ErrConflict{Message: "email already registered"}
		}
	}
	row := *u
	row.ID = s.id()
	row.CreatedAt = s.now()
	s.users[row.ID] = row
	return &row, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: id}
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if email != "" && strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) ListUsersByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.User{}
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return &domain.ErrNotFound{Resource: "user", ID: id}
	}
	delete(s.users, id)
	return nil
}

// ============================================================
// Brands
// ============================================================

func (s *Store) CreateBrand(_ context.Context, b *domain.Brand) (*domain.Brand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[b.OwnerID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "user", ID: b.OwnerID}
	}
	for _, existing := range s.brands {
		if existing.OwnerID == b.OwnerID {
			return nil, &domain.ErrConflict{Message: "user already owns a brand"}
		}
	}
	row := *b
	row.ID = s.id()
	row.CreatedAt = s.now()
	s.brands[row.ID] = row
	return &row, nil
}

func (s *Store) GetBrand(_ context.Context, id int64) (*domain.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brands[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "brand", ID: id}
	}
	return &b, nil
}

func (s *Store) GetBrandByOwner(_ context.Context, ownerID int64) (*domain.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.brands {
		if b.OwnerID == ownerID {
			return &b, nil
		}
	}
	return nil, nil
}

func (s *Store) ListBrands(context.Context) ([]domain.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ============================================================
// Retail partners
// ============================================================

func clonePartner(p domain.RetailPartner) domain.RetailPartner {
	p.Metadata.Tags = slices.Clone(p.Metadata.Tags)
	if p.UserID != nil {
		v := *p.UserID
		p.UserID = &v
	}
	if p.ConnectionDate != nil {
		v := *p.ConnectionDate
		p.ConnectionDate = &v
	}
	return p
}

func (s *Store) CreatePartner(_ context.Context, p *domain.RetailPartner) (*domain.RetailPartner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[p.BrandID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "brand", ID: p.BrandID}
	}
	row := clonePartner(*p)
	row.ID = s.id()
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	s.partners[row.ID] = row
	out := clonePartner(row)
	return &out, nil
}

func (s *Store) GetPartner(_ context.Context, id int64) (*domain.RetailPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.partners[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "retail partner", ID: id}
	}
	out := clonePartner(p)
	return &out, nil
}

func (s *Store) GetPartnerByUser(_ context.Context, userID int64) (*domain.RetailPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.partners {
		if p.UserID != nil && *p.UserID == userID {
			out := clonePartner(p)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) ListPartners(_ context.Context, scope domain.TenantScope) ([]domain.RetailPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.RetailPartner{}
	for _, p := range s.partners {
		if scope.Allows(p.BrandID) {
			out = append(out, clonePartner(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePartner(_ context.Context, p *domain.RetailPartner) (*domain.RetailPartner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.partners[p.ID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "retail partner", ID: p.ID}
	}
	row := clonePartner(*p)
	row.BrandID = existing.BrandID
	row.CreatedAt = existing.CreatedAt
	s.partners[row.ID] = row
	out := clonePartner(row)
	return &out, nil
}

func (s *Store) DeletePartner(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[id]; !ok {
		return &domain.ErrNotFound{Resource: "retail partner", ID: id}
	}
	for _, a := range s.accounts {
		if a.PartnerID == id {
			return &domain.ErrConflict{Message: "retail partner still has connected social accounts"}
		}
	}
	for aid, a := range s.assignments {
		if a.PartnerID == id {
			delete(s.assignments, aid)
		}
	}
	delete(s.partners, id)
	return nil
}

// ============================================================
// Content posts
// ============================================================

func clonePost(p domain.ContentPost) domain.ContentPost {
	p.MediaURLs = slices.Clone(p.MediaURLs)
	p.Platforms = slices.Clone(p.Platforms)
	if p.Metadata != nil {
		m := make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			m[k] = v
		}
		p.Metadata = m
	}
	if p.ScheduledDate != nil {
		v := *p.ScheduledDate
		p.ScheduledDate = &v
	}
	if p.PublishedDate != nil {
		v := *p.PublishedDate
		p.PublishedDate = &v
	}
	return p
}

func (s *Store) CreatePost(_ context.Context, p *domain.ContentPost) (*domain.ContentPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[p.BrandID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "brand", ID: p.BrandID}
	}
	row := clonePost(*p)
	row.ID = s.id()
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	s.posts[row.ID] = row
	out := clonePost(row)
	return &out, nil
}

func (s *Store) GetPost(_ context.Context, id int64) (*domain.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "content post", ID: id}
	}
	out := clonePost(p)
	return &out, nil
}

func (s *Store) ListPosts(_ context.Context, scope domain.TenantScope) ([]domain.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ContentPost{}
	for _, p := range s.posts {
		if scope.Allows(p.BrandID) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdatePost(_ context.Context, p *domain.ContentPost) (*domain.ContentPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[p.ID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "content post", ID: p.ID}
	}
	row := clonePost(*p)
	row.BrandID = existing.BrandID
	row.CreatorID = existing.CreatorID
	row.CreatedAt = existing.CreatedAt
	s.posts[row.ID] = row
	out := clonePost(row)
	return &out, nil
}

func (s *Store) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return &domain.ErrNotFound{Resource: "content post", ID: id}
	}
	for aid, a := range s.assignments {
		if a.PostID == id {
			delete(s.assignments, aid)
		}
	}
	delete(s.posts, id)
	return nil
}

// ============================================================
// Post assignments
// ============================================================

func cloneAssignment(a domain.PostAssignment) domain.PostAssignment {
	a.CustomTags = slices.Clone(a.CustomTags)
	a.PlatformPosts = maps.Clone(a.PlatformPosts)
	if a.PublishedDate != nil {
		v := *a.PublishedDate
		a.PublishedDate = &v
	}
	return a
}

func (s *Store) CreateAssignment(_ context.Context, a *domain.PostAssignment) (*domain.PostAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[a.PostID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "content post", ID: a.PostID}
	}
	if _, ok := s.partners[a.PartnerID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "retail partner", ID: a.PartnerID}
	}
	for _, existing := range s.assignments {
		if existing.PostID == a.PostID && existing.PartnerID == a.PartnerID {
			return nil, &domain.ErrConflict{Message: fmt.Sprintf("post %d is already assigned to partner %d", a.PostID, a.PartnerID)}
		}
	}
	row := cloneAssignment(*a)
	row.ID = s.id()
	row.CreatedAt = s.now()
	row.UpdatedAt = row.CreatedAt
	s.assignments[row.ID] = row
	out := cloneAssignment(row)
	return &out, nil
}

func (s *Store) GetAssignment(_ context.Context, id int64) (*domain.PostAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "post assignment", ID: id}
	}
	out := cloneAssignment(a)
	return &out, nil
}

func (s *Store) listAssignments(match func(domain.PostAssignment) bool) []domain.PostAssignment {
	out := []domain.PostAssignment{}
	for _, a := range s.assignments {
		if match(a) {
			out = append(out, cloneAssignment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListAssignmentsByPost(_ context.Context, postID int64) ([]domain.PostAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAssignments(func(a domain.PostAssignment) bool { return a.PostID == postID }), nil
}

func (s *Store) ListAssignmentsByPartner(_ context.Context, partnerID int64) ([]domain.PostAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAssignments(func(a domain.PostAssignment) bool { return a.PartnerID == partnerID }), nil
}

func (s *Store) UpdateAssignment(_ context.Context, a *domain.PostAssignment) (*domain.PostAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.assignments[a.ID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "post assignment", ID: a.ID}
	}
	row := cloneAssignment(*a)
	row.PostID = existing.PostID
	row.PartnerID = existing.PartnerID
	row.CreatedAt = existing.CreatedAt
	s.assignments[row.ID] = row
	out := cloneAssignment(row)
	return &out, nil
}

// ============================================================
// Social accounts
// ============================================================

func (s *Store) CreateSocialAccount(_ context.Context, a *domain.SocialAccount) (*domain.SocialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.partners[a.PartnerID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "retail partner", ID: a.PartnerID}
	}
	for _, existing := range s.accounts {
		if existing.Platform == a.Platform && existing.ExternalAccountID == a.ExternalAccountID {
			return nil, &domain.ErrConflict{Message: "social account already connected"}
		}
	}
	row := *a
	row.ID = s.id()
	row.CreatedAt = s.now()
	s.accounts[row.ID] = row
	return &row, nil
}

func (s *Store) GetSocialAccount(_ context.Context, id int64) (*domain.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "social account", ID: id}
	}
	return &a, nil
}

func (s *Store) ListSocialAccounts(_ context.Context, scope domain.TenantScope) ([]domain.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.SocialAccount{}
	for _, a := range s.accounts {
		p, ok := s.partners[a.PartnerID]
		if ok && scope.Allows(p.BrandID) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSocialAccountsByPartner(_ context.Context, partnerID int64) ([]domain.SocialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.SocialAccount{}
	for _, a := range s.accounts {
		if a.PartnerID == partnerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteSocialAccount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return &domain.ErrNotFound{Resource: "social account", ID: id}
	}
	delete(s.accounts, id)
	return nil
}

// ============================================================
// Media
// ============================================================

func (s *Store) CreateMedia(_ context.Context, m *domain.MediaItem) (*domain.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.brands[m.BrandID]; !ok {
		return nil, &domain.ErrNotFound{Resource: "brand", ID: m.BrandID}
	}
	row := *m
	row.ID = s.id()
	row.CreatedAt = s.now()
	s.media[row.ID] = row
	return &row, nil
}

func (s *Store) GetMedia(_ context.Context, id int64) (*domain.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.media[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "media item", ID: id}
	}
	return &m, nil
}

func (s *Store) ListMedia(_ context.Context, scope domain.TenantScope) ([]domain.MediaItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.MediaItem{}
	for _, m := range s.media {
		if scope.Allows(m.BrandID) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteMedia(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.media[id]; !ok {
		return &domain.ErrNotFound{Resource: "media item", ID: id}
	}
	delete(s.media, id)
	return nil
}

// ============================================================
// Invites
// ============================================================

func (s *Store) CreateInvite(_ context.Context, inv *domain.Invite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invites[inv.ID]; ok {
		return &domain.ErrConflict{Message: "invite already exists"}
	}
	row := *inv
	if row.CreatedAt.IsZero() {
		row.CreatedAt = s.now()
	}
	s.invites[row.ID] = row
	return nil
}

func (s *Store) GetInvite(_ context.Context, id string) (*domain.Invite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invites[id]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (s *Store) MarkInviteUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[id]
	if !ok {
		return &domain.ErrValidation{Field: "token", Message: "unknown invite"}
	}
	if inv.UsedAt != nil {
		return &domain.ErrConflict{Message: "invite already used"}
	}
	inv.UsedAt = &at
	s.invites[id] = inv
	return nil
}
