package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	model "github.com/custompc-tech/storefront/backend/internal/model/review"
	"github.com/custompc-tech/storefront/backend/internal/service/review"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

var epoch = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*review.Service, *local.Adapter, *clock.Fake) {
	t.Helper()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	require.NoError(t, err)
	adapter := local.New(store)
	fake := clock.NewFake(epoch)
	return review.NewService(adapter, fake), adapter, fake
}

func TestDeriveUserID(t *testing.T) {
	// "a" hashes to 97, "ab" to 97*31+98 = 3105.
	assert.Equal(t, "user_2p", review.DeriveUserID("a"))
	assert.Equal(t, "user_2e9", review.DeriveUserID("ab"))
	assert.Equal(t, "user_0", review.DeriveUserID(""))
	assert.Equal(t, review.DeriveUserID("ada"), review.DeriveUserID("ada"))
	assert.NotEqual(t, review.DeriveUserID("ada"), review.DeriveUserID("bob"))
	// Long names overflow 32 bits and must still yield a non-negative value.
	assert.Regexp(t, `^user_[0-9a-z]+$`, review.DeriveUserID("a-considerably-longer-username-that-wraps"))
}

func TestResolveAuthorAnonymousIsStable(t *testing.T) {
	_, adapter, fake := newService(t)
	ctx := context.Background()
	scope := adapter.Scoped("browser-1")

	first, err := review.ResolveAuthor(ctx, scope, fake, "")
	require.NoError(t, err)
	require.Regexp(t, `^anon_[0-9a-z]{9}_\d+$`, first.ID)
	require.Equal(t, review.AnonymousName, first.Name)

	fake.Advance(time.Minute)
	second, err := review.ResolveAuthor(ctx, scope, fake, "")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	other, err := review.ResolveAuthor(ctx, adapter.Scoped("browser-2"), fake, "")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)

	named, err := review.ResolveAuthor(ctx, scope, fake, "ada")
	require.NoError(t, err)
	require.Equal(t, review.DeriveUserID("ada"), named.ID)
}

func TestSubmitKeepsTwoNewestPerUser(t *testing.T) {
	svc, _, fake := newService(t)
	ctx := context.Background()
	ada := review.Author{ID: review.DeriveUserID("ada"), Name: "ada"}
	bob := review.Author{ID: review.DeriveUserID("bob"), Name: "bob"}

	texts := []string{"first review text", "second review text", "third review text"}
	for _, text := range texts {
		_, err := svc.Submit(ctx, "creator-4k", ada, review.Input{Rating: 4.5, Text: text})
		require.NoError(t, err)
		fake.Advance(time.Second)
	}
	_, err := svc.Submit(ctx, "creator-4k", bob, review.Input{Rating: 3, Text: "bob thinks it is fine"})
	require.NoError(t, err)

	sum := svc.List(ctx, "creator-4k")
	require.Equal(t, 3, sum.Count)
	require.Equal(t, "bob thinks it is fine", sum.Reviews[0].Text)
	require.Equal(t, "third review text", sum.Reviews[1].Text)
	require.Equal(t, "second review text", sum.Reviews[2].Text)
	require.InDelta(t, 4.0, sum.Average, 0.001)

	other := svc.List(ctx, "photo-pro")
	require.Zero(t, other.Count)
}

func TestSubmitSameMillisecondKeepsNewest(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	ada := review.Author{ID: "user_x", Name: "ada"}

	for _, text := range []string{"one one one one", "two two two two", "three three three"} {
		_, err := svc.Submit(ctx, "photo-pro", ada, review.Input{Rating: 5, Text: text})
		require.NoError(t, err)
	}
	sum := svc.List(ctx, "photo-pro")
	require.Len(t, sum.Reviews, 2)
	require.Equal(t, "three three three", sum.Reviews[0].Text)
	require.Equal(t, "two two two two", sum.Reviews[1].Text)
}

func TestSubmitValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	ada := review.Author{ID: "user_x", Name: "ada"}

	_, err := svc.Submit(ctx, "photo-pro", ada, review.Input{Rating: 3.3, Text: "long enough text"})
	require.ErrorIs(t, err, review.ErrInvalidRating)
	_, err = svc.Submit(ctx, "photo-pro", ada, review.Input{Rating: 5.5, Text: "long enough text"})
	require.ErrorIs(t, err, review.ErrInvalidRating)
	_, err = svc.Submit(ctx, "photo-pro", ada, review.Input{Rating: 2.5, Text: "  short   "})
	require.ErrorIs(t, err, review.ErrTextTooShort)
	_, err = svc.Submit(ctx, "photo-pro", ada, review.Input{Rating: 0, Text: "zero stars but valid"})
	require.NoError(t, err)
}

func TestUpdateAndDeleteAreOwnerOnly(t *testing.T) {
	svc, _, fake := newService(t)
	ctx := context.Background()
	ada := review.Author{ID: "user_ada", Name: "ada"}
	bob := review.Author{ID: "user_bob", Name: "bob"}

	r, err := svc.Submit(ctx, "rgb-showcase", ada, review.Input{Rating: 4, Text: "lights are great"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "rgb-showcase", r.ID, bob, review.Input{Rating: 1, Text: "not my review"})
	require.ErrorIs(t, err, review.ErrNotOwner)
	require.ErrorIs(t, svc.Delete(ctx, "rgb-showcase", r.ID, bob), review.ErrNotOwner)

	_, err = svc.Update(ctx, "rgb-showcase", r.ID, ada, review.Input{Rating: 4, Text: "too short"})
	require.ErrorIs(t, err, review.ErrTextTooShort)

	fake.Advance(time.Minute)
	updated, err := svc.Update(ctx, "rgb-showcase", r.ID, ada, review.Input{Rating: 3.5, Text: "lights are great, fans loud"})
	require.NoError(t, err)
	require.Equal(t, 3.5, updated.Rating)
	require.Equal(t, epoch.Add(time.Minute).UnixMilli(), updated.Timestamp)

	_, err = svc.Update(ctx, "rgb-showcase", "review_missing", ada, review.Input{Rating: 1, Text: "does not exist"})
	require.ErrorIs(t, err, review.ErrReviewNotFound)

	require.NoError(t, svc.Delete(ctx, "rgb-showcase", r.ID, ada))
	require.Zero(t, svc.List(ctx, "rgb-showcase").Count)
}

func TestCapGroupsLegacyData(t *testing.T) {
	items := []model.Review{
		{ID: "a1", UserID: "u1", Timestamp: 1},
		{ID: "a2", UserID: "u1", Timestamp: 5},
		{ID: "b1", UserID: "u2", Timestamp: 3},
		{ID: "a3", UserID: "u1", Timestamp: 4},
	}
	got := review.Cap(items)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a2", "a3", "b1"}, ids)
}
