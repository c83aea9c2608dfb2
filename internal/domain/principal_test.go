package domain_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

func TestTenantScope_Allows(t *testing.T) {
	if !domain.AllTenants().Allows(42) {
		t.Error("all-tenant scope must allow any brand")
	}
	if domain.NoTenant().Allows(1) {
		t.Error("empty scope must allow nothing")
	}
	s := domain.SingleTenant(5)
	if !s.Allows(5) || s.Allows(6) {
		t.Errorf("single tenant scope misbehaves: %+v", s)
	}
	if domain.SingleTenant(0).Kind != domain.ScopeNone {
		t.Error("brand id 0 must resolve to the empty scope")
	}
}

func TestImpersonatedBrand_ActsAsBrand(t *testing.T) {
	p := domain.ImpersonatedBrand{AdminID: 1, BrandID: 9}
	if p.Role() != domain.RoleBrand {
		t.Errorf("expected brand role, got %s", p.Role())
	}
	if p.ActorID() != 1 {
		t.Errorf("expected actor to be the admin, got %d", p.ActorID())
	}
	if !domain.HasRole(p, domain.RoleBrand) || domain.HasRole(p, domain.RoleAdmin) {
		t.Error("impersonated brand must only satisfy the brand role")
	}
	if domain.HasRole(nil, domain.RoleAdmin) {
		t.Error("nil principal has no role")
	}
}

func TestSecretsNeverSerialized(t *testing.T) {
	u := domain.User{ID: 1, Username: "ann", PasswordHash: "$2a$12$secret"}
	acc := domain.SocialAccount{ID: 2, AccessToken: "EAAB-token", RefreshToken: "refresh"}

	for _, v := range []any{u, acc} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		s := string(b)
		for _, secret := range []string{"$2a$12$secret", "EAAB-token", "refresh\""} {
			if strings.Contains(s, secret) {
				t.Errorf("secret %q leaked in %s", secret, s)
			}
		}
	}
}
