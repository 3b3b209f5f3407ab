package watch_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/watch"
)

type item struct{ id string }

type source struct {
	mu    sync.Mutex
	items []item
}

func (s *source) add(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.items = append(s.items, item{id: id})
	}
}

func (s *source) read() []item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]item(nil), s.items...)
}

func itemID(i item) string { return i.id }

func recv(t *testing.T, ch <-chan []item) []item {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for callback")
		return nil
	}
}

func expectSilence(t *testing.T, ch <-chan []item) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected callback with %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeEmitsOnlyNewItems(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	w := watch.NewPollingWatcher(fake)
	src := &source{}
	src.add("a", "b", "c")

	calls := make(chan []item, 8)
	cancel := watch.Subscribe(w, watch.MessageInterval, src.read, itemID, func(items []item) {
		calls <- items
	})
	defer cancel()

	src.add("d", "e")
	fake.Advance(watch.MessageInterval)

	got := recv(t, calls)
	require.Equal(t, []item{{"d"}, {"e"}}, got)

	fake.Advance(watch.MessageInterval)
	expectSilence(t, calls)

	src.add("f")
	fake.Advance(watch.MessageInterval)
	require.Equal(t, []item{{"f"}}, recv(t, calls))
}

func TestSubscriptionsAreIndependent(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	w := watch.NewPollingWatcher(fake)
	src := &source{}
	src.add("a")

	first := make(chan []item, 4)
	cancelFirst := watch.Subscribe(w, time.Second, src.read, itemID, func(items []item) { first <- items })
	defer cancelFirst()

	src.add("b")
	second := make(chan []item, 4)
	cancelSecond := watch.Subscribe(w, time.Second, src.read, itemID, func(items []item) { second <- items })
	defer cancelSecond()

	fake.Advance(time.Second)
	require.Equal(t, []item{{"b"}}, recv(t, first))
	expectSilence(t, second)
}

func TestCancelIsIdempotent(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	w := watch.NewPollingWatcher(fake)
	src := &source{}

	calls := make(chan []item, 4)
	cancel := watch.Subscribe(w, time.Second, src.read, itemID, func(items []item) { calls <- items })
	cancel()
	cancel()

	src.add("a")
	fake.Advance(time.Second)
	expectSilence(t, calls)
}

func TestEveryTicksUntilCancelled(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	w := watch.NewPollingWatcher(fake)

	ticks := make(chan struct{}, 4)
	cancel := w.Every(watch.SessionInterval, func() { ticks <- struct{}{} })

	fake.Advance(watch.SessionInterval)
	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected tick")
	}

	cancel()
	fake.Advance(watch.SessionInterval)
	select {
	case <-ticks:
		t.Fatalf("tick after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}
