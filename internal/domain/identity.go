package domain

import "time"

// User is a row of the identity store.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name,omitempty"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Brand is the tenant root.
type Brand struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"ownerId"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the server-side state behind the session cookie.
// Only the user id is stored; the principal is rebuilt on every request.
type Session struct {
	ID                  string    `json:"id"`
	UserID              int64     `json:"userId"`
	ImpersonatedBrandID int64     `json:"impersonatedBrandId,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	ExpiresAt           time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Invite is a one-time invitation for a retail partner to create its user.
type Invite struct {
	ID        string     `json:"id"`
	BrandID   int64      `json:"brandId"`
	PartnerID int64      `json:"partnerId"`
	Email     string     `json:"email"`
	CreatedBy int64      `json:"createdBy"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
