package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	model "github.com/custompc-tech/storefront/backend/internal/model/presence"
	chatsvc "github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/presence"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

var epoch = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*presence.Service, *clock.Fake) {
	t.Helper()
	store, err := kv.NewStore(kv.StoreTypeMemory)
	require.NoError(t, err)
	fake := clock.NewFake(epoch)
	backend := chatsvc.NewLocalBackend(local.New(store), fake)
	return presence.NewService(backend, fake), fake
}

func TestRegisterAssignsTabID(t *testing.T) {
	svc, _ := newService(t)
	u, err := svc.Register(context.Background(), model.ActiveUser{Username: "ada"})
	require.NoError(t, err)
	require.Regexp(t, `^user_\d+_[0-9a-z]{9}$`, u.SessionID)
	require.Equal(t, epoch.UnixMilli(), u.LastSeen)
}

func TestActiveUsersTTL(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, model.ActiveUser{SessionID: "user_old", Username: "ada", IsAdmin: true})
	require.NoError(t, err)
	fake.Advance(2 * time.Second)
	_, err = svc.Register(ctx, model.ActiveUser{SessionID: "user_new", Username: "bob"})
	require.NoError(t, err)

	fake.Advance(299 * time.Second)
	sum, err := svc.ActiveUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Total)
	require.Equal(t, "user_new", sum.Users[0].SessionID)
	require.Equal(t, 0, sum.Admins)
	require.Equal(t, 1, sum.Visitors)
}

func TestAttachHeartbeatsUntilClosed(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	reg, err := svc.Attach(ctx, model.ActiveUser{Username: "ada", Page: "/builds"})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		fake.Advance(model.HeartbeatInterval)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		sum, err := svc.ActiveUsers(ctx)
		return err == nil && sum.Total == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, reg.Close(ctx))
	require.NoError(t, reg.Close(ctx))

	sum, err := svc.ActiveUsers(ctx)
	require.NoError(t, err)
	require.Zero(t, sum.Total)
}

func TestHeartbeatRequiresSession(t *testing.T) {
	svc, _ := newService(t)
	require.ErrorIs(t, svc.Heartbeat(context.Background(), "", "/"), presence.ErrSessionRequired)
}

func TestTrackVisit(t *testing.T) {
	svc, fake := newService(t)
	ctx := context.Background()

	first, err := svc.TrackVisit(ctx, presence.Visit{Page: "/", Referrer: "https://google.com"})
	require.NoError(t, err)
	require.Regexp(t, `^visitor_\d+_[0-9a-z]{9}$`, first.VisitorID)
	require.False(t, first.IsReturning)
	require.Equal(t, []string{"/"}, first.Pages)

	fake.Advance(time.Minute)
	second, err := svc.TrackVisit(ctx, presence.Visit{VisitorID: first.VisitorID, Page: "/builds"})
	require.NoError(t, err)
	require.True(t, second.IsReturning)
	require.Equal(t, []string{"/", "/builds"}, second.Pages)
	require.Equal(t, first.SessionStart, second.SessionStart)

	_, err = svc.TrackVisit(ctx, presence.Visit{VisitorID: first.VisitorID, Page: "/"})
	require.NoError(t, err)

	active, err := svc.ActiveVisitors(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, []string{"/", "/builds"}, active[0].Pages)

	fake.Advance(31 * time.Minute)
	active, err = svc.ActiveVisitors(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	back, err := svc.TrackVisit(ctx, presence.Visit{VisitorID: first.VisitorID, Page: "/contact"})
	require.NoError(t, err)
	require.Equal(t, fake.Now().UnixMilli(), back.SessionStart)
}
