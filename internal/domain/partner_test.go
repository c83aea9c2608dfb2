package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

func strPtr(s string) *string { return &s }

func statusPtr(s domain.PartnerStatus) *domain.PartnerStatus { return &s }

func TestRetailPartnerApply_EmptyPatchIsNoop(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := domain.RetailPartner{ID: 1, BrandID: 7, Name: "Acme", Status: domain.PartnerPending, UpdatedAt: created}
	before := p

	if changed := p.Apply(domain.RetailPartnerPatch{}, time.Now()); changed {
		t.Fatal("expected empty patch to report no change")
	}
	if p.UpdatedAt != before.UpdatedAt || p.Status != before.Status || p.ConnectionDate != nil {
		t.Errorf("expected partner unchanged, got %+v", p)
	}
}

func TestRetailPartnerApply_ActivationStampsConnectionDate(t *testing.T) {
	p := domain.RetailPartner{Status: domain.PartnerPending}
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	p.Apply(domain.RetailPartnerPatch{Status: statusPtr(domain.PartnerActive)}, now)

	if p.ConnectionDate == nil || !p.ConnectionDate.Equal(now) {
		t.Fatalf("expected connectionDate %v, got %v", now, p.ConnectionDate)
	}
}

func TestRetailPartnerApply_ReactivationRestampsButStayingActiveDoesNot(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := domain.RetailPartner{Status: domain.PartnerPending}
	p.Apply(domain.RetailPartnerPatch{Status: statusPtr(domain.PartnerActive)}, first)

	// already active: no restamp
	p.Apply(domain.RetailPartnerPatch{Status: statusPtr(domain.PartnerActive)}, first.Add(time.Hour))
	if !p.ConnectionDate.Equal(first) {
		t.Fatalf("expected connectionDate to stay %v, got %v", first, p.ConnectionDate)
	}

	p.Apply(domain.RetailPartnerPatch{Status: statusPtr(domain.PartnerInactive)}, first.Add(2*time.Hour))
	if !p.ConnectionDate.Equal(first) {
		t.Fatalf("deactivation must not touch connectionDate, got %v", p.ConnectionDate)
	}

	again := first.Add(3 * time.Hour)
	p.Apply(domain.RetailPartnerPatch{Status: statusPtr(domain.PartnerActive)}, again)
	if !p.ConnectionDate.Equal(again) {
		t.Fatalf("expected re-activation to stamp %v, got %v", again, p.ConnectionDate)
	}
}

func TestRetailPartnerPatch_PartnerSelfServiceDropsStatusAndName(t *testing.T) {
	patch := domain.RetailPartnerPatch{
		Name:           strPtr("Renamed"),
		Status:         statusPtr(domain.PartnerActive),
		ContactPhone:   strPtr("555-0100"),
		FooterTemplate: strPtr("Visit us"),
	}

	filtered := patch.PartnerSelfService()

	if filtered.Name != nil || filtered.Status != nil {
		t.Errorf("expected name and status dropped, got %+v", filtered)
	}
	if filtered.ContactPhone == nil || *filtered.ContactPhone != "555-0100" {
		t.Error("expected contactPhone kept")
	}
	if filtered.FooterTemplate == nil {
		t.Error("expected footerTemplate kept")
	}
}

func TestCreatePartnerRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     domain.CreatePartnerRequest
		wantMsg string
	}{
		{"ok", domain.CreatePartnerRequest{Name: "Acme", ContactEmail: "a@acme.test"}, ""},
		{"missing email", domain.CreatePartnerRequest{Name: "Acme"}, domain.MissingFieldsMessage},
		{"missing name", domain.CreatePartnerRequest{ContactEmail: "a@acme.test"}, domain.MissingFieldsMessage},
		{"bad email", domain.CreatePartnerRequest{Name: "Acme", ContactEmail: "nope"}, "validation error on 'contactEmail': must be an email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *domain.ErrValidation
			if !errors.As(err, &ve) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}
