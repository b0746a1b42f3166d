package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rrnagar/marketplace/app/models"
)

func TestBlogsPublishedOnly(t *testing.T) {
	f := setup(t)
	admin := f.admin(t, "ops@example.com", models.AdminRoleAdmin, true)

	draft, err := f.svc.Content.CreateBlog(f.ctx, admin.ID, BlogInput{Title: "Monsoon Greens", Content: "..."})
	require.NoError(t, err)
	assert.Equal(t, "monsoon-greens", draft.Slug)
	assert.Nil(t, draft.PublishedAt)

	_, err = f.svc.Content.BlogBySlug(f.ctx, "monsoon-greens")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Content.CreateBlog(f.ctx, admin.ID, BlogInput{Title: "Monsoon Greens", Content: "again"})
	assert.IsType(t, &ValidationError{}, err)

	pub, err := f.svc.Content.UpdateBlog(f.ctx, draft.ID, BlogInput{Title: "Monsoon Greens", Content: "...", Published: ptr(true)})
	require.NoError(t, err)
	assert.NotNil(t, pub.PublishedAt)

	items, _, err := f.svc.Content.PublishedBlogs(f.ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	got, err := f.svc.Content.BlogBySlug(f.ctx, "monsoon-greens")
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)
}

func TestActiveAdsWindowAndOrder(t *testing.T) {
	f := setup(t)
	now := time.Now()

	mk := func(in AdInput) *models.Ad {
		a, err := f.svc.Content.CreateAd(f.ctx, in)
		require.NoError(t, err)
		return a
	}
	second := mk(AdInput{Title: "Second", Position: 2})
	first := mk(AdInput{Title: "First", Position: 1, StartsAt: ptr(now.Add(-time.Hour)), EndsAt: ptr(now.Add(time.Hour))})
	mk(AdInput{Title: "Expired", Position: 0, EndsAt: ptr(now.Add(-time.Minute))})
	mk(AdInput{Title: "Future", Position: 0, StartsAt: ptr(now.Add(time.Hour))})
	off := mk(AdInput{Title: "Off", Position: 0})
	_, err := f.svc.Content.UpdateAd(f.ctx, off.ID, AdInput{Title: "Off", Active: ptr(false)})
	require.NoError(t, err)

	ads, err := f.svc.Content.ActiveAds(f.ctx, now)
	require.NoError(t, err)
	require.Len(t, ads, 2)
	assert.Equal(t, first.ID, ads[0].ID)
	assert.Equal(t, second.ID, ads[1].ID)

	_, err = f.svc.Content.CreateAd(f.ctx, AdInput{Title: "Bad", StartsAt: ptr(now), EndsAt: ptr(now.Add(-time.Hour))})
	assert.IsType(t, &ValidationError{}, err)
}

func TestReviewsAverageAndReplace(t *testing.T) {
	f := setup(t)
	p := f.product(t, "Ghee", 600)
	a := f.customer(t, "a@example.com")
	b := f.customer(t, "b@example.com")

	_, err := f.svc.Content.Review(f.ctx, a.ID, p.ID, ReviewInput{Rating: 6})
	assert.IsType(t, &ValidationError{}, err)

	_, err = f.svc.Content.Review(f.ctx, a.ID, p.ID, ReviewInput{Rating: 2})
	require.NoError(t, err)
	_, err = f.svc.Content.Review(f.ctx, a.ID, p.ID, ReviewInput{Rating: 4, Comment: "better batch"})
	require.NoError(t, err)
	_, err = f.svc.Content.Review(f.ctx, b.ID, p.ID, ReviewInput{Rating: 5})
	require.NoError(t, err)

	got, _, err := f.svc.Content.Reviews(f.ctx, p.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Count)
	assert.Equal(t, 4.5, got.Average)

	_, err = f.svc.Content.Review(f.ctx, a.ID, p.ID, ReviewInput{Rating: 3, OrderID: ptr(uint(99))})
	assert.IsType(t, &ValidationError{}, err)
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := setup(t)
	c := f.customer(t, "asha@example.com")
	p := f.product(t, "Milk", 30)
	require.NoError(t, f.db.Model(p).Updates(map[string]any{"monthly_package": true, "monthly_price": 850}).Error)

	_, err := f.svc.Subscriptions.Subscribe(f.ctx, c.ID, SubscriptionInput{ProductID: p.ID, Plan: models.PlanYearly})
	assert.IsType(t, &ValidationError{}, err)

	sub, err := f.svc.Subscriptions.Subscribe(f.ctx, c.ID, SubscriptionInput{ProductID: p.ID, Plan: models.PlanMonthly})
	require.NoError(t, err)
	assert.Equal(t, 850.0, sub.Price)
	assert.Equal(t, sub.StartDate.AddDate(0, 1, 0), sub.EndDate)

	other := f.customer(t, "other@example.com")
	_, err = f.svc.Subscriptions.Cancel(f.ctx, other.ID, sub.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := f.svc.Subscriptions.ExpireLapsed(f.ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.svc.Subscriptions.ExpireLapsed(f.ctx, sub.EndDate.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.svc.Subscriptions.Cancel(f.ctx, c.ID, sub.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
