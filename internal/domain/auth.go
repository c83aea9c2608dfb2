package domain

import "time"

// ============================================================
// Auth — Request / Response types
// ============================================================

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body for POST /register (brand self sign-up).
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	BrandName string `json:"brandName"`
	Plan      string `json:"plan"`
}

// CurrentUserResponse is the body for GET /user and a successful POST /login.
type CurrentUserResponse struct {
	User           *User  `json:"user"`
	Role           Role   `json:"role"`
	BrandID        int64  `json:"brandId,omitempty"`
	PartnerID      int64  `json:"partnerId,omitempty"`
	Impersonating  bool   `json:"impersonating"`
	ImpersonatorID int64  `json:"impersonatorId,omitempty"`
	Brand          *Brand `json:"brand,omitempty"`
}

// InviteCreateRequest is the body for POST /invites.
type InviteCreateRequest struct {
	PartnerID int64  `json:"partnerId"`
	Email     string `json:"email"`
}

// InviteCreateResponse carries the plaintext token; only its id is stored.
type InviteCreateResponse struct {
	Token     string    `json:"token"`
	AcceptURL string    `json:"acceptUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InviteInfo is the body for GET /invites/verify.
type InviteInfo struct {
	Email       string    `json:"email"`
	PartnerID   int64     `json:"partnerId"`
	PartnerName string    `json:"partnerName"`
	BrandID     int64     `json:"brandId"`
	BrandName   string    `json:"brandName"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// InviteAcceptRequest is the body for POST /invites/accept.
type InviteAcceptRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SuccessResponse is a generic acknowledgement body.
type SuccessResponse struct {
	Message string `json:"message"`
}
