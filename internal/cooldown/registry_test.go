package cooldown

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/JojoKaizeb/GenXuzoProject/internal/access"
)

func newTestRegistry(t *testing.T, w Windows) (*Registry, *time.Time) {
	t.Helper()
	r, err := NewRegistry(filepath.Join(t.TempDir(), "cooldown.json"), w)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestCheckAndReserveBlocksWithinWindow(t *testing.T) {
	t.Parallel()
	r, now := newTestRegistry(t, Windows{Free: 5 * time.Minute})

	if got := r.CheckAndReserve(1, access.TierFree); got != 0 {
		t.Fatalf("first use blocked for %d seconds", got)
	}
	*now = now.Add(10 * time.Second)
	if got := r.CheckAndReserve(1, access.TierFree); got != 290 {
		t.Fatalf("remaining = %d, want 290", got)
	}
	*now = now.Add(5 * time.Minute)
	if got := r.CheckAndReserve(1, access.TierFree); got != 0 {
		t.Fatalf("post-window use blocked for %d seconds", got)
	}
}

func TestBlockedAttemptDoesNotExtendWindow(t *testing.T) {
	t.Parallel()
	r, now := newTestRegistry(t, Windows{Free: time.Minute})

	r.CheckAndReserve(7, access.TierFree)
	*now = now.Add(30 * time.Second)
	if got := r.CheckAndReserve(7, access.TierFree); got != 30 {
		t.Fatalf("remaining = %d, want 30", got)
	}
	// Another 31s puts us past the original window even though a blocked
	// attempt happened in between.
	*now = now.Add(31 * time.Second)
	if got := r.CheckAndReserve(7, access.TierFree); got != 0 {
		t.Fatalf("window was extended by a blocked attempt: %d", got)
	}
}

func TestRemainingRoundsUp(t *testing.T) {
	t.Parallel()
	r, now := newTestRegistry(t, Windows{Free: 10 * time.Second})

	r.CheckAndReserve(1, access.TierFree)
	*now = now.Add(9500 * time.Millisecond)
	if got := r.CheckAndReserve(1, access.TierFree); got != 1 {
		t.Fatalf("remaining = %d, want 1 (ceil of 0.5s)", got)
	}
}

func TestZeroWindowNeverBlocks(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t, Windows{Owner: 0, Free: time.Hour})

	for i := 0; i < 3; i++ {
		if got := r.CheckAndReserve(9, access.TierOwner); got != 0 {
			t.Fatalf("owner blocked for %d seconds", got)
		}
	}
}

func TestTiersAreIndependent(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t, Windows{Free: time.Hour, Premium: time.Minute})

	if got := r.CheckAndReserve(1, access.TierFree); got != 0 {
		t.Fatalf("free first use blocked: %d", got)
	}
	if got := r.CheckAndReserve(2, access.TierPremium); got != 0 {
		t.Fatalf("premium first use blocked: %d", got)
	}
	if got := r.CheckAndReserve(1, access.TierFree); got == 0 {
		t.Fatal("free second use not blocked")
	}
}

func TestSetWindowsPersists(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cooldown.json")
	r, err := NewRegistry(path, Windows{Free: time.Minute})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	free := 5 * time.Minute
	if _, err := r.SetWindows(&free, nil, nil); err != nil {
		t.Fatalf("SetWindows: %v", err)
	}

	r2, err := NewRegistry(path, Windows{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := r2.Windows().Free; got != free {
		t.Fatalf("reloaded free window = %v, want %v", got, free)
	}
}

func TestEvictDropsOnlyStaleEntries(t *testing.T) {
	t.Parallel()
	r, now := newTestRegistry(t, Windows{Free: time.Minute, Premium: 10 * time.Minute})

	r.CheckAndReserve(1, access.TierFree)
	*now = now.Add(5 * time.Minute)
	r.CheckAndReserve(2, access.TierPremium)
	*now = now.Add(6 * time.Minute)

	if n := r.Evict(*now); n != 1 {
		t.Fatalf("evicted %d entries, want 1", n)
	}
}
