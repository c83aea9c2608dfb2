package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

// ============================================================
// PostService
// ============================================================

func TestPostService_CreateDefaultsToDraft(t *testing.T) {
	f := newFixture(t)
	alpha, _ := f.registerBrand(t, "alpha")

	post := f.createPost(t, alpha, domain.PlatformFacebook, domain.PlatformInstagram)
	assert.Equal(t, domain.PostDraft, post.Status)
	assert.Equal(t, alpha.BrandID, post.BrandID)
	assert.Equal(t, alpha.UserID, post.CreatorID)
	assert.NotNil(t, post.Metadata)
	assert.Nil(t, post.PublishedDate)
}

func TestPostService_CreateRejectsUnknownPlatform(t *testing.T) {
	f := newFixture(t)
	alpha, _ := f.registerBrand(t, "alpha")

	_, err := f.posts.Create(context.Background(), alpha, &domain.CreatePostRequest{
		Title:     "x",
		Platforms: []domain.Platform{"myspace"},
	})
	v := requireErrorAs[*domain.ErrValidation](t, err)
	assert.Equal(t, "platforms", v.Field)
}

func TestPostService_PublishedDateStampedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	post := f.createPost(t, alpha, domain.PlatformFacebook)

	published := domain.PostPublished
	first, err := f.posts.Update(ctx, alpha, post.ID, domain.ContentPostPatch{Status: &published})
	require.NoError(t, err)
	require.NotNil(t, first.PublishedDate)

	draft := domain.PostDraft
	_, err = f.posts.Update(ctx, alpha, post.ID, domain.ContentPostPatch{Status: &draft})
	require.NoError(t, err)
	second, err := f.posts.Update(ctx, alpha, post.ID, domain.ContentPostPatch{Status: &published})
	require.NoError(t, err)
	assert.Equal(t, first.PublishedDate, second.PublishedDate)
}

func TestPostService_ScheduleAssignsOwnPartners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	one := f.createPartner(t, alpha, "one")
	two := f.createPartner(t, alpha, "two")
	post := f.createPost(t, alpha, domain.PlatformFacebook)
	when := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	res, err := f.posts.Schedule(ctx, alpha, post.ID, &domain.ScheduleRequest{PartnerIDs: []int64{one.ID}, ScheduledDate: &when})
	require.NoError(t, err)
	assert.Equal(t, domain.PostScheduled, res.Post.Status)
	require.NotNil(t, res.Post.ScheduledDate)
	assert.True(t, when.Equal(*res.Post.ScheduledDate))
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, domain.AssignmentPending, res.Assignments[0].Status)

	// existing pairs are skipped, duplicates in the request collapse
	res, err = f.posts.Schedule(ctx, alpha, post.ID, &domain.ScheduleRequest{PartnerIDs: []int64{one.ID, two.ID, two.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{one.ID}, res.Skipped)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, two.ID, res.Assignments[0].PartnerID)

	all, err := f.posts.ListAssignments(ctx, alpha, post.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPostService_ScheduleRejectsForeignPartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	beta, _ := f.registerBrand(t, "beta")
	mine := f.createPartner(t, alpha, "mine")
	theirs := f.createPartner(t, beta, "theirs")
	post := f.createPost(t, alpha, domain.PlatformFacebook)

	_, err := f.posts.Schedule(ctx, alpha, post.ID, &domain.ScheduleRequest{PartnerIDs: []int64{mine.ID, theirs.ID}})
	requireErrorAs[*domain.ErrForbidden](t, err)

	// nothing is written when any partner is rejected
	assignments, err := f.store.ListAssignmentsByPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
	got, err := f.store.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostDraft, got.Status)
}

func TestPostService_ScheduleNeedsPartners(t *testing.T) {
	f := newFixture(t)
	alpha, _ := f.registerBrand(t, "alpha")
	post := f.createPost(t, alpha, domain.PlatformFacebook)

	_, err := f.posts.Schedule(context.Background(), alpha, post.ID, &domain.ScheduleRequest{})
	requireErrorAs[*domain.ErrValidation](t, err)
}

func TestPostService_PartnerSeesAssignedPostsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	mine := f.createPartner(t, alpha, "mine")
	sibling := f.createPartner(t, alpha, "sibling")
	partner := f.partnerUser(t, alpha, mine, "mine-user")

	assigned := f.createPost(t, alpha, domain.PlatformFacebook)
	f.createPost(t, alpha, domain.PlatformFacebook)
	_, err := f.posts.Schedule(ctx, alpha, assigned.ID, &domain.ScheduleRequest{PartnerIDs: []int64{mine.ID, sibling.ID}})
	require.NoError(t, err)

	posts, err := f.posts.List(ctx, partner, nil)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, assigned.ID, posts[0].ID)

	own, err := f.posts.ListAssignments(ctx, partner, assigned.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].PartnerID)

	brandPosts, err := f.posts.List(ctx, alpha, nil)
	require.NoError(t, err)
	assert.Len(t, brandPosts, 2)

	// partners cannot author content
	_, err = f.posts.Create(ctx, partner, &domain.CreatePostRequest{Title: "x", Platforms: []domain.Platform{domain.PlatformFacebook}})
	requireErrorAs[*domain.ErrForbidden](t, err)
}

func TestPostService_PartnerCustomisesOwnAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	mine := f.createPartner(t, alpha, "mine")
	sibling := f.createPartner(t, alpha, "sibling")
	partner := f.partnerUser(t, alpha, mine, "mine-user")
	post := f.createPost(t, alpha, domain.PlatformFacebook)
	res, err := f.posts.Schedule(ctx, alpha, post.ID, &domain.ScheduleRequest{PartnerIDs: []int64{mine.ID, sibling.ID}})
	require.NoError(t, err)
	require.Len(t, res.Assignments, 2)
	ownID, siblingID := res.Assignments[0].ID, res.Assignments[1].ID

	skipped := domain.AssignmentSkipped
	tags := []string{"spring", "#sale"}
	updated, err := f.posts.UpdateAssignment(ctx, partner, ownID, domain.AssignmentPatch{
		CustomFooter: strPtr("Visit us on Main St."),
		CustomTags:   &tags,
		Status:       &skipped,
	})
	require.NoError(t, err)
	assert.Equal(t, "Visit us on Main St.", updated.CustomFooter)
	assert.Equal(t, tags, updated.CustomTags)
	assert.Equal(t, domain.AssignmentPending, updated.Status)

	_, err = f.posts.UpdateAssignment(ctx, partner, siblingID, domain.AssignmentPatch{CustomFooter: strPtr("hijack")})
	requireErrorAs[*domain.ErrForbidden](t, err)

	// brands can change the status
	byBrand, err := f.posts.UpdateAssignment(ctx, alpha, siblingID, domain.AssignmentPatch{Status: &skipped})
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentSkipped, byBrand.Status)
}

func TestPostService_DeleteCascadesAssignments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	mine := f.createPartner(t, alpha, "mine")
	post := f.createPost(t, alpha, domain.PlatformFacebook)
	_, err := f.posts.Schedule(ctx, alpha, post.ID, &domain.ScheduleRequest{PartnerIDs: []int64{mine.ID}})
	require.NoError(t, err)

	require.NoError(t, f.posts.Delete(ctx, alpha, post.ID))
	left, err := f.store.ListAssignmentsByPartner(ctx, mine.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

// ============================================================
// SocialAccountService
// ============================================================

func TestSocialAccountService_PartnerConnectsOwnAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	mine := f.createPartner(t, alpha, "mine")
	sibling := f.createPartner(t, alpha, "sibling")
	partner := f.partnerUser(t, alpha, mine, "mine-user")

	// a partner's own row wins over the payload
	acct := f.connect(t, partner, sibling.ID, domain.PlatformInstagram, "ig-1")
	assert.Equal(t, mine.ID, acct.PartnerID)
	assert.Equal(t, domain.SocialAccountActive, acct.Status)

	f.connect(t, alpha, sibling.ID, domain.PlatformFacebook, "page-2")

	visible, err := f.social.List(ctx, partner, nil)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "ig-1", visible[0].ExternalAccountID)

	brandView, err := f.social.List(ctx, alpha, nil)
	require.NoError(t, err)
	assert.Len(t, brandView, 2)
}

func TestSocialAccountService_BrandMustNamePartner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	beta, _ := f.registerBrand(t, "beta")
	theirs := f.createPartner(t, beta, "theirs")

	_, err := f.social.Create(ctx, alpha, &domain.CreateSocialAccountRequest{
		Platform: domain.PlatformFacebook, ExternalAccountID: "p", AccessToken: "t",
	})
	v := requireErrorAs[*domain.ErrValidation](t, err)
	assert.Equal(t, "partnerId", v.Field)

	_, err = f.social.Create(ctx, alpha, &domain.CreateSocialAccountRequest{
		PartnerID: theirs.ID, Platform: domain.PlatformFacebook, ExternalAccountID: "p", AccessToken: "t",
	})
	requireErrorAs[*domain.ErrForbidden](t, err)
}

func TestSocialAccountService_FetchPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	mine := f.createPartner(t, alpha, "mine")
	fb := f.connect(t, alpha, mine.ID, domain.PlatformFacebook, "page-1")
	ig := f.connect(t, alpha, mine.ID, domain.PlatformInstagram, "ig-1")
	f.pub.pages = []domain.Page{{ID: "1", Name: "Mine on Main"}}

	pages, err := f.social.FetchPages(ctx, alpha, fb.ID)
	require.NoError(t, err)
	assert.Equal(t, f.pub.pages, pages)

	_, err = f.social.FetchPages(ctx, alpha, ig.ID)
	requireErrorAs[*domain.ErrValidation](t, err)
}

// ============================================================
// MediaService
// ============================================================

func TestMediaService_CreateAndScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alpha, _ := f.registerBrand(t, "alpha")
	beta, _ := f.registerBrand(t, "beta")

	item, err := f.media.Create(ctx, alpha, &domain.CreateMediaRequest{
		URL:         "https://cdn.test/assets/banner.png",
		ContentType: "image/png",
		SizeBytes:   2048,
	})
	require.NoError(t, err)
	assert.Equal(t, "banner.png", item.Filename)
	assert.Equal(t, "image", item.Kind)
	assert.Equal(t, alpha.BrandID, item.BrandID)

	other, err := f.media.List(ctx, beta, nil)
	require.NoError(t, err)
	assert.Empty(t, other)

	err = f.media.Delete(ctx, beta, item.ID)
	requireErrorAs[*domain.ErrForbidden](t, err)
	require.NoError(t, f.media.Delete(ctx, alpha, item.ID))

	_, err = f.media.Create(ctx, alpha, &domain.CreateMediaRequest{URL: "ftp://nope"})
	requireErrorAs[*domain.ErrValidation](t, err)
}

// ============================================================
// BrandService / UserService
// ============================================================

func TestBrandService_CurrentAndAdminViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.admin(t)
	alpha, _ := f.registerBrand(t, "alpha")
	beta, _ := f.registerBrand(t, "beta")
	f.createPartner(t, alpha, "mine")

	own, err := f.brands.Current(ctx, alpha)
	require.NoError(t, err)
	assert.Equal(t, alpha.BrandID, own.ID)

	_, err = f.brands.Get(ctx, alpha, beta.BrandID)
	requireErrorAs[*domain.ErrForbidden](t, err)

	_, err = f.brands.List(ctx, alpha)
	requireErrorAs[*domain.ErrForbidden](t, err)

	all, err := f.brands.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	stats, err := f.brands.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Brands)
	assert.Equal(t, 1, stats.Partners)
	assert.Equal(t, 0, stats.Posts)
	assert.Equal(t, 1.0, stats.LoginsSucceeded)
}

func TestUserService_ListByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin, _ := f.admin(t)
	alpha, _ := f.registerBrand(t, "alpha")
	f.registerBrand(t, "beta")

	brands, err := f.users.ListByRole(ctx, admin, domain.RoleBrand)
	require.NoError(t, err)
	assert.Len(t, brands, 2)

	_, err = f.users.ListByRole(ctx, admin, "owner")
	requireErrorAs[*domain.ErrValidation](t, err)

	_, err = f.users.ListByRole(ctx, alpha, domain.RoleBrand)
	requireErrorAs[*domain.ErrForbidden](t, err)
}
