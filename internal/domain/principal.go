package domain

// Role is the coarse permission class of a user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleBrand   Role = "brand"
	RolePartner Role = "partner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBrand, RolePartner:
		return true
	}
	return false
}

// Principal is the authenticated identity executing a request.
// The concrete variants are AdminPrincipal, BrandPrincipal, PartnerPrincipal
// and ImpersonatedBrand; no other package can add one.
type Principal interface {
	Role() Role
	// ActorID is the user that performs the request (the admin while impersonating).
	ActorID() int64
	principal()
}

// AdminPrincipal is a platform administrator acting as themselves.
type AdminPrincipal struct {
	UserID int64
}

// BrandPrincipal is a brand owner. BrandID is zero if the user owns no brand yet.
type BrandPrincipal struct {
	UserID  int64
	BrandID int64
}

// PartnerPrincipal is a retail-partner user. PartnerID and BrandID are zero
// when no RetailPartner row is linked to the user.
type PartnerPrincipal struct {
	UserID    int64
	PartnerID int64
	BrandID   int64
}

// ImpersonatedBrand is an admin acting as a brand until impersonation ends.
type ImpersonatedBrand struct {
	AdminID int64
	BrandID int64
}

func (AdminPrincipal) Role() Role    { return RoleAdmin }
func (BrandPrincipal) Role() Role    { return RoleBrand }
func (PartnerPrincipal) Role() Role  { return RolePartner }
func (ImpersonatedBrand) Role() Role { return RoleBrand }

func (p AdminPrincipal) ActorID() int64    { return p.UserID }
func (p BrandPrincipal) ActorID() int64    { return p.UserID }
func (p PartnerPrincipal) ActorID() int64  { return p.UserID }
func (p ImpersonatedBrand) ActorID() int64 { return p.AdminID }

func (AdminPrincipal) principal()    {}
func (BrandPrincipal) principal()    {}
func (PartnerPrincipal) principal()  {}
func (ImpersonatedBrand) principal() {}

// HasRole reports whether p's role is in roles.
func HasRole(p Principal, roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role() == r {
			return true
		}
	}
	return false
}

// ScopeKind tells how a listing is restricted.
type ScopeKind int

const (
	// ScopeNone matches nothing. Used when tenant resolution fails closed.
	ScopeNone ScopeKind = iota
	// ScopeBrand matches a single brand.
	ScopeBrand
	// ScopeAll matches every brand (admin cross-tenant view).
	ScopeAll
)

// TenantScope is the output of tenant resolution.
type TenantScope struct {
	Kind    ScopeKind
	BrandID int64
}

// AllTenants is the admin cross-tenant scope.
func AllTenants() TenantScope { return TenantScope{Kind: ScopeAll} }

// NoTenant is the empty scope.
func NoTenant() TenantScope { return TenantScope{Kind: ScopeNone} }

// SingleTenant scopes to one brand.
func SingleTenant(brandID int64) TenantScope {
	if brandID <= 0 {
		return NoTenant()
	}
	return TenantScope{Kind: ScopeBrand, BrandID: brandID}
}

// Allows reports whether a row owned by brandID is visible in the scope.
func (s TenantScope) Allows(brandID int64) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeBrand:
		return brandID == s.BrandID
	}
	return false
}
