package health

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeChecker struct {
	name    string
	healthy atomic.Bool
}

func (f *fakeChecker) Name() string                               { return f.name }
func (f *fakeChecker) IsHealthy() bool                            { return f.healthy.Load() }
func (f *fakeChecker) Start(ctx context.Context, _ time.Duration) { /* no-op */ }

func waitFor(t *testing.T, pred func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if pred() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for: %s", msg)
}

func TestServiceHealthStartsDown(t *testing.T) {
	svc := NewServiceHealthChecker(zerolog.Nop(), &fakeChecker{name: "store"})
	if svc.IsHealthy() {
		t.Fatalf("service reported healthy before any evaluation")
	}
}

func TestServiceHealthTracksDependencies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeChecker{name: "store"}
	store.healthy.Store(true)

	svc := NewServiceHealthChecker(zerolog.Nop(), store)
	go svc.Start(ctx, 10*time.Millisecond)

	waitFor(t, svc.IsHealthy, "healthy with all deps up")

	store.healthy.Store(false)
	waitFor(t, func() bool { return !svc.IsHealthy() }, "unhealthy after store check fails")

	store.healthy.Store(true)
	waitFor(t, svc.IsHealthy, "healthy again after store recovers")
}

func TestServiceHealthRequiresAllDependencies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &fakeChecker{name: "store"}
	feed := &fakeChecker{name: "livefeed"}
	store.healthy.Store(true)

	svc := NewServiceHealthChecker(zerolog.Nop(), store, feed)
	go svc.Start(ctx, 10*time.Millisecond)

	// One dep down keeps the service down
	time.Sleep(50 * time.Millisecond)
	if svc.IsHealthy() {
		t.Fatalf("service healthy while a dependency is down")
	}

	feed.healthy.Store(true)
	waitFor(t, svc.IsHealthy, "healthy once every dep is up")
}
