package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftly_backend/internal/testutil"
	"thriftly_backend/models"
)

func TestReviewService(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewReviewService(db)
	ctx := context.Background()

	seller := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")

	summary, err := svc.Summary(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RatingSummary{}, summary)

	_, err = svc.Create(ctx, bob.ID, seller.ID, 0, "")
	assert.True(t, models.IsKind(err, models.KindValidation))
	_, err = svc.Create(ctx, bob.ID, seller.ID, 6, "")
	assert.True(t, models.IsKind(err, models.KindValidation))
	_, err = svc.Create(ctx, seller.ID, seller.ID, 5, "")
	assert.True(t, models.IsKind(err, models.KindConflict))
	_, err = svc.Create(ctx, bob.ID, 999, 5, "")
	assert.True(t, models.IsKind(err, models.KindNotFound))

	_, err = svc.Create(ctx, bob.ID, seller.ID, 5, "Great <i>seller</i>")
	require.NoError(t, err)
	_, err = svc.Create(ctx, carol.ID, seller.ID, 4, "ok")
	require.NoError(t, err)

	summary, err = svc.Summary(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.Count)
	assert.InDelta(t, 4.5, summary.Avg, 0.001)

	reviews, err := svc.List(ctx, seller.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "carol", reviews[0].ReviewerName)
	assert.Equal(t, "Great seller", reviews[1].Comment)
}

func TestCategoryService_ListSeeded(t *testing.T) {
	db := testutil.NewTestDB(t)
	categories, err := NewCategoryService(db).List(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, categories)
	assert.Equal(t, "Accessories", categories[0].Name)
}

func TestWishlistService_Toggle(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewWishlistService(db)
	ctx := context.Background()

	seller := testutil.CreateUser(t, db, "alice")
	buyer := testutil.CreateUser(t, db, "bob")
	item := testutil.CreateProduct(t, db, seller.ID, "Denim Jacket", 1000)

	added, err := svc.Toggle(ctx, buyer.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, added)

	list, err := svc.List(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Denim Jacket", list[0].Product.Title)

	added, err = svc.Toggle(ctx, buyer.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, added)

	list, err = svc.List(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Toggle(ctx, buyer.ID, 999)
	assert.True(t, models.IsKind(err, models.KindNotFound))
}

func TestFollowService(t *testing.T) {
	env := newTestEnv(t)
	svc := NewFollowService(env.db, env.notifications)
	ctx := context.Background()

	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	err := svc.Follow(ctx, alice.ID, alice.ID)
	assert.True(t, models.IsKind(err, models.KindConflict))
	err = svc.Follow(ctx, alice.ID, 999)
	assert.True(t, models.IsKind(err, models.KindNotFound))

	require.NoError(t, svc.Follow(ctx, bob.ID, alice.ID))
	err = svc.Follow(ctx, bob.ID, alice.ID)
	assert.True(t, models.IsKind(err, models.KindConflict))

	following, err := svc.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, following)

	counts, err := svc.Counts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FollowCounts{Followers: 1, Following: 0}, counts)

	notes := env.notificationsFor(t, alice.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationFollow, notes[0].Type)
	assert.Equal(t, "bob started following you", notes[0].Text)

	require.NoError(t, svc.Unfollow(ctx, bob.ID, alice.ID))
	require.NoError(t, svc.Unfollow(ctx, bob.ID, alice.ID))
	following, err = svc.IsFollowing(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, following)
}
