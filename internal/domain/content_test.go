package domain_test

import (
	"testing"
	"time"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

func postStatusPtr(s domain.PostStatus) *domain.PostStatus { return &s }

func TestContentPostApply_PublishedDateSetOnce(t *testing.T) {
	p := domain.ContentPost{Status: domain.PostDraft}
	first := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	p.Apply(domain.ContentPostPatch{Status: postStatusPtr(domain.PostPublished)}, first)
	if p.PublishedDate == nil || !p.PublishedDate.Equal(first) {
		t.Fatalf("expected publishedDate %v, got %v", first, p.PublishedDate)
	}

	p.Apply(domain.ContentPostPatch{Status: postStatusPtr(domain.PostDraft)}, first.Add(time.Hour))
	p.Apply(domain.ContentPostPatch{Status: postStatusPtr(domain.PostPublished)}, first.Add(2*time.Hour))
	if !p.PublishedDate.Equal(first) {
		t.Errorf("expected publishedDate to remain %v, got %v", first, p.PublishedDate)
	}
}

func TestContentPostApply_EmptyPatch(t *testing.T) {
	p := domain.ContentPost{Title: "Spring", Status: domain.PostScheduled}
	if p.Apply(domain.ContentPostPatch{}, time.Now()) {
		t.Fatal("expected no change")
	}
	if !p.UpdatedAt.IsZero() {
		t.Error("expected updatedAt untouched")
	}
}

func TestCreatePostRequest_RejectsUnknownPlatform(t *testing.T) {
	req := domain.CreatePostRequest{Body: "hello", Platforms: []domain.Platform{"myspace"}}
	if err := req.Validate(); err == nil {
		t.Fatal("expected validation error")
	}

	req.Platforms = []domain.Platform{domain.PlatformFacebook, domain.PlatformInstagram}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAssignmentCaption(t *testing.T) {
	post := &domain.ContentPost{Title: "Sale", Body: "Spring sale is on"}
	a := &domain.PostAssignment{CustomTags: []string{"#spring", "sale", " "}}

	got := a.Caption(post, "Acme Store, Main St")
	want := "Spring sale is on\n\nAcme Store, Main St\n\n#spring #sale"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	a.CustomFooter = "Only at Acme"
	got = a.Caption(post, "Acme Store, Main St")
	want = "Spring sale is on\n\nOnly at Acme\n\n#spring #sale"
	if got != want {
		t.Errorf("expected custom footer to win, got %q", got)
	}
}

func TestAssignmentPatch_PartnerSelfService(t *testing.T) {
	st := domain.AssignmentPublished
	footer := "hi"
	patch := domain.AssignmentPatch{Status: &st, CustomFooter: &footer}

	f := patch.PartnerSelfService()
	if f.Status != nil {
		t.Error("expected status dropped")
	}
	if f.CustomFooter == nil || *f.CustomFooter != "hi" {
		t.Error("expected customFooter kept")
	}
}
