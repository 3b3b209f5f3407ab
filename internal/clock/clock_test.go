package clock_test

import (
	"testing"
	"time"

	"github.com/custompc-tech/storefront/backend/internal/clock"
)

func TestFakeTickerFiresOnAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)
	tk := c.NewTicker(2 * time.Second)
	defer tk.Stop()

	select {
	case <-tk.C():
		t.Fatalf("ticker fired before advance")
	default:
	}

	c.Advance(2 * time.Second)
	select {
	case got := <-tk.C():
		if !got.Equal(start.Add(2 * time.Second)) {
			t.Fatalf("unexpected tick time %v", got)
		}
	default:
		t.Fatalf("expected tick after advance")
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	tk := c.NewTicker(time.Second)
	tk.Stop()
	c.Advance(5 * time.Second)

	select {
	case <-tk.C():
		t.Fatalf("stopped ticker fired")
	default:
	}
}

func TestFakeAfter(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	ch := c.After(3 * time.Second)

	c.Advance(2 * time.Second)
	select {
	case <-ch:
		t.Fatalf("timer fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatalf("timer did not fire")
	}
}

func TestMillis(t *testing.T) {
	ts := time.Unix(1700000000, 123*int64(time.Millisecond))
	if got := clock.Millis(ts); got != 1700000000123 {
		t.Fatalf("Millis = %d", got)
	}
}
