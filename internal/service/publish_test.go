package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/brand-partner-hub/internal/domain"
)

// publishSetup is a brand with two partners, each with a Facebook page,
// and one post scheduled to both.
type publishSetup struct {
	f        *fixture
	brand    domain.BrandPrincipal
	partner  domain.PartnerPrincipal
	mine     *domain.RetailPartner
	sibling  *domain.RetailPartner
	post     *domain.ContentPost
	ownID    int64
	siblings int64
}

func newPublishSetup(t *testing.T) *publishSetup {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	brand, _ := f.registerBrand(t, "alpha")
	mine := f.createPartner(t, brand, "mine")
	sibling := f.createPartner(t, brand, "sibling")
	partner := f.partnerUser(t, brand, mine, "mine-user")

	f.connect(t, brand, mine.ID, domain.PlatformFacebook, "page-mine")
	f.connect(t, brand, sibling.ID, domain.PlatformFacebook, "page-sibling")

	post := f.createPost(t, brand, domain.PlatformFacebook)
	res, err := f.posts.Schedule(ctx, brand, post.ID, &domain.ScheduleRequest{PartnerIDs: []int64{mine.ID, sibling.ID}})
	require.NoError(t, err)
	require.Len(t, res.Assignments, 2)

	return &publishSetup{
		f:        f,
		brand:    brand,
		partner:  partner,
		mine:     mine,
		sibling:  sibling,
		post:     res.Post,
		ownID:    res.Assignments[0].ID,
		siblings: res.Assignments[1].ID,
	}
}

func TestPublishAssignment_PartnerPublishesOwn(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()
	footer := "Find us on Main St."
	_, err := s.f.posts.UpdateAssignment(ctx, s.partner, s.ownID, domain.AssignmentPatch{CustomFooter: &footer})
	require.NoError(t, err)

	a, err := s.f.publish.PublishAssignment(ctx, s.partner, s.ownID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentPublished, a.Status)
	assert.Equal(t, "facebook-page-mine", a.ExternalID)
	assert.Equal(t, "https://social.test/page-mine", a.PublishedURL)
	assert.NotNil(t, a.PublishedDate)

	require.Equal(t, 1, s.f.pub.callCount())
	call := s.f.pub.calls[0]
	assert.Equal(t, "page-mine", call.AccountID)
	assert.Equal(t, "https://cdn.test/spring.jpg", call.MediaURL)
	assert.Contains(t, call.Message, "New colours are in.")
	assert.Contains(t, call.Message, footer)

	post, err := s.f.store.GetPost(ctx, s.post.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PostPublished, post.Status)
	require.NotNil(t, post.PublishedDate)
	firstStamp := *post.PublishedDate

	// a second assignment going out does not move the post's date
	_, err = s.f.publish.PublishAssignment(ctx, s.brand, s.siblings)
	require.NoError(t, err)
	post, err = s.f.store.GetPost(ctx, s.post.ID)
	require.NoError(t, err)
	assert.True(t, firstStamp.Equal(*post.PublishedDate))

	assert.Equal(t, 2.0, s.f.metrics.Snapshot().PublishesSucceeded)
}

func TestPublishAssignment_PartnerCannotPublishSibling(t *testing.T) {
	s := newPublishSetup(t)

	_, err := s.f.publish.PublishAssignment(context.Background(), s.partner, s.siblings)
	requireErrorAs[*domain.ErrForbidden](t, err)
	assert.Zero(t, s.f.pub.callCount())
}

func TestPublishAssignment_AlreadyPublished(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()

	_, err := s.f.publish.PublishAssignment(ctx, s.brand, s.ownID)
	require.NoError(t, err)
	_, err = s.f.publish.PublishAssignment(ctx, s.brand, s.ownID)
	requireErrorAs[*domain.ErrConflict](t, err)
}

func TestPublishAssignment_UpstreamFailureMarksFailed(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()
	s.f.pub.failOn["page-mine"] = &domain.ErrExternalService{Service: "facebook", Err: errors.New("Invalid OAuth access token.")}

	_, err := s.f.publish.PublishAssignment(ctx, s.brand, s.ownID)
	requireErrorAs[*domain.ErrExternalService](t, err)

	a, err := s.f.store.GetAssignment(ctx, s.ownID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentFailed, a.Status)
	assert.Equal(t, "Invalid OAuth access token.", a.LastError)
	assert.Nil(t, a.PublishedDate)

	post, err := s.f.store.GetPost(ctx, s.post.ID)
	require.NoError(t, err)
	assert.Nil(t, post.PublishedDate)
	assert.Equal(t, 1.0, s.f.metrics.Snapshot().PublishesFailed)
}

func TestPublishAssignment_MissingAccountForPlatform(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()
	both := []domain.Platform{domain.PlatformFacebook, domain.PlatformInstagram}
	_, err := s.f.posts.Update(ctx, s.brand, s.post.ID, domain.ContentPostPatch{Platforms: &both})
	require.NoError(t, err)

	_, err = s.f.publish.PublishAssignment(ctx, s.brand, s.ownID)
	v := requireErrorAs[*domain.ErrValidation](t, err)
	assert.Equal(t, "socialAccount", v.Field)
	assert.Zero(t, s.f.pub.callCount())
}

func TestPublishAssignment_RetrySkipsPlatformsAlreadyPosted(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()
	both := []domain.Platform{domain.PlatformFacebook, domain.PlatformInstagram}
	_, err := s.f.posts.Update(ctx, s.brand, s.post.ID, domain.ContentPostPatch{Platforms: &both})
	require.NoError(t, err)
	s.f.connect(t, s.brand, s.mine.ID, domain.PlatformInstagram, "ig-mine")
	s.f.pub.failOn["ig-mine"] = errors.New("media container not ready")

	_, err = s.f.publish.PublishAssignment(ctx, s.partner, s.ownID)
	external := requireErrorAs[*domain.ErrExternalService](t, err)
	assert.Equal(t, "instagram", external.Service)

	a, err := s.f.store.GetAssignment(ctx, s.ownID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentFailed, a.Status)
	assert.Equal(t, map[domain.Platform]string{domain.PlatformFacebook: "facebook-page-mine"}, a.PlatformPosts)

	delete(s.f.pub.failOn, "ig-mine")
	a, err = s.f.publish.PublishAssignment(ctx, s.partner, s.ownID)
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentPublished, a.Status)
	assert.Equal(t, "facebook-page-mine,instagram-ig-mine", a.ExternalID)

	perPlatform := map[domain.Platform]int{}
	for _, c := range s.f.pub.calls {
		perPlatform[c.Platform]++
	}
	assert.Equal(t, 1, perPlatform[domain.PlatformFacebook], "facebook must not be posted twice")
	assert.Equal(t, 2, perPlatform[domain.PlatformInstagram])
}

func TestPublishAssignment_InstagramWithoutMediaSendsNothing(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()
	both := []domain.Platform{domain.PlatformFacebook, domain.PlatformInstagram}
	noMedia := []string{}
	_, err := s.f.posts.Update(ctx, s.brand, s.post.ID, domain.ContentPostPatch{Platforms: &both, MediaURLs: &noMedia})
	require.NoError(t, err)
	s.f.connect(t, s.brand, s.mine.ID, domain.PlatformInstagram, "ig-mine")

	_, err = s.f.publish.PublishAssignment(ctx, s.brand, s.ownID)
	v := requireErrorAs[*domain.ErrValidation](t, err)
	assert.Equal(t, "mediaUrls", v.Field)
	assert.Zero(t, s.f.pub.callCount())
}

func TestPublishPost_FansOutAndReportsEachAssignment(t *testing.T) {
	s := newPublishSetup(t)
	ctx := context.Background()
	s.f.pub.failOn["page-sibling"] = &domain.ErrCircuitOpen{Service: "facebook"}

	res, err := s.f.publish.PublishPost(ctx, s.brand, s.post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Published)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Outcomes, 2)

	byPartner := map[int64]domain.PublishOutcome{}
	for _, o := range res.Outcomes {
		byPartner[o.PartnerID] = o
	}
	assert.Empty(t, byPartner[s.mine.ID].Error)
	assert.Equal(t, domain.AssignmentPublished, byPartner[s.mine.ID].Assignment.Status)
	assert.Equal(t, "circuit breaker open for service: facebook", byPartner[s.sibling.ID].Error)
	assert.Equal(t, domain.AssignmentFailed, byPartner[s.sibling.ID].Assignment.Status)

	post, err := s.f.store.GetPost(ctx, s.post.ID)
	require.NoError(t, err)
	assert.NotNil(t, post.PublishedDate)

	// only pending assignments are picked up again
	res, err = s.f.publish.PublishPost(ctx, s.brand, s.post.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
}

func TestPublishPost_BrandOnly(t *testing.T) {
	s := newPublishSetup(t)

	_, err := s.f.publish.PublishPost(context.Background(), s.partner, s.post.ID)
	requireErrorAs[*domain.ErrForbidden](t, err)
}
