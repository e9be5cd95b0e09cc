package access

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRoster(t *testing.T, owners []int64) *Roster {
	t.Helper()
	r, err := NewRoster(t.TempDir(), owners, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRoster: %v", err)
	}
	return r
}

func TestTierResolution(t *testing.T) {
	t.Parallel()
	r := newTestRoster(t, []int64{42})
	now := time.Now()

	if _, err := r.GrantPremium(7, now.Add(time.Hour)); err != nil {
		t.Fatalf("GrantPremium: %v", err)
	}
	if _, err := r.GrantPremium(8, now.Add(-time.Hour)); err != nil {
		t.Fatalf("GrantPremium: %v", err)
	}

	cases := []struct {
		id   int64
		want Tier
	}{
		{42, TierOwner},
		{7, TierPremium},
		{8, TierFree}, // expired membership
		{1, TierFree},
	}
	for _, tc := range cases {
		if got := r.TierOf(tc.id, now); got != tc.want {
			t.Errorf("TierOf(%d) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestOwnersAreImplicitAdmins(t *testing.T) {
	t.Parallel()
	r := newTestRoster(t, []int64{42})

	if !r.IsAdmin(42) {
		t.Fatal("owner not treated as admin")
	}
	if r.IsAdmin(1) {
		t.Fatal("stranger treated as admin")
	}
	if added, err := r.AddAdmin(1); err != nil || !added {
		t.Fatalf("AddAdmin = (%v, %v)", added, err)
	}
	if !r.IsAdmin(1) {
		t.Fatal("added admin not recognized")
	}
	if added, _ := r.AddAdmin(1); added {
		t.Fatal("duplicate admin reported as added")
	}
	if removed, err := r.RemoveAdmin(1); err != nil || !removed {
		t.Fatalf("RemoveAdmin = (%v, %v)", removed, err)
	}
}

func TestGrantPremiumExtends(t *testing.T) {
	t.Parallel()
	r := newTestRoster(t, nil)
	now := time.Now()

	existed, err := r.GrantPremium(7, now.Add(time.Hour))
	if err != nil || existed {
		t.Fatalf("first grant = (%v, %v)", existed, err)
	}
	later := now.Add(48 * time.Hour)
	existed, err = r.GrantPremium(7, later)
	if err != nil || !existed {
		t.Fatalf("second grant = (%v, %v)", existed, err)
	}
	members := r.Premium()
	if len(members) != 1 || !members[0].ExpiresAt.Equal(later) {
		t.Fatalf("members = %+v", members)
	}
}

func TestPruneExpired(t *testing.T) {
	t.Parallel()
	r := newTestRoster(t, nil)
	now := time.Now()

	r.GrantPremium(1, now.Add(time.Hour))
	r.GrantPremium(2, now.Add(-time.Hour))
	r.GrantPremium(3, now.Add(-time.Minute))

	n, err := r.PruneExpired(now)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	if r.ActivePremiumCount(now) != 1 {
		t.Fatalf("active = %d, want 1", r.ActivePremiumCount(now))
	}
}

func TestRevokePremium(t *testing.T) {
	t.Parallel()
	r := newTestRoster(t, nil)
	r.GrantPremium(1, time.Now().Add(time.Hour))

	if removed, _ := r.RevokePremium(1); !removed {
		t.Fatal("revoke of existing membership reported false")
	}
	if removed, _ := r.RevokePremium(1); removed {
		t.Fatal("revoke of missing membership reported true")
	}
}
