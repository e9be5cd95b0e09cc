package remotecfg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRemote struct {
	maintenance atomic.Value // string
	version     atomic.Value // string
	fail        atomic.Bool
	hits        atomic.Int64
}

func newFakeRemote(t *testing.T) (*fakeRemote, *httptest.Server) {
	t.Helper()
	f := &fakeRemote{}
	f.maintenance.Store(`{"maintenance":false}`)
	f.version.Store(`{"version":"3.1.0"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		if f.fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch r.URL.Path {
		case "/maintenance.json":
			w.Write([]byte(f.maintenance.Load().(string)))
		case "/version.json":
			w.Write([]byte(f.version.Load().(string)))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestCache(t *testing.T, baseURL string) (*Cache, *time.Time) {
	t.Helper()
	c := New(baseURL, 30*time.Second, 5*time.Second, zerolog.Nop())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMaintenanceCachedWithinTTL(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRemote(t)
	c, now := newTestCache(t, srv.URL)
	ctx := context.Background()

	if m := c.Maintenance(ctx); m.Enabled {
		t.Fatal("maintenance unexpectedly enabled")
	}
	f.maintenance.Store(`{"maintenance":true,"reason":"upgrade"}`)

	// Still inside the TTL: the cached document wins.
	*now = now.Add(10 * time.Second)
	if m := c.Maintenance(ctx); m.Enabled {
		t.Fatal("cached value ignored within TTL")
	}

	*now = now.Add(30 * time.Second)
	m := c.Maintenance(ctx)
	if !m.Enabled || m.Reason != "upgrade" {
		t.Fatalf("after TTL expiry got %+v", m)
	}
}

func TestMaintenanceStaleFallbackOnFetchFailure(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRemote(t)
	c, now := newTestCache(t, srv.URL)
	ctx := context.Background()

	f.maintenance.Store(`{"maintenance":true,"reason":"upgrade","allowOwner":true}`)
	if m := c.Maintenance(ctx); !m.Enabled {
		t.Fatal("first fetch not applied")
	}

	f.fail.Store(true)
	*now = now.Add(time.Minute)
	m := c.Maintenance(ctx)
	if !m.Enabled || !m.AllowOperator {
		t.Fatalf("stale fallback lost state: %+v", m)
	}
	if st := c.State(); st.LastErr == nil {
		t.Fatal("fetch failure not recorded in state")
	}
}

func TestMaintenanceDefaultReason(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRemote(t)
	f.maintenance.Store(`{"maintenance":true}`)
	c, _ := newTestCache(t, srv.URL)

	if m := c.Maintenance(context.Background()); m.Reason == "" {
		t.Fatal("expected a default reason")
	}
}

func TestMaintenanceDisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()
	c, _ := newTestCache(t, "")
	if m := c.Maintenance(context.Background()); m.Enabled {
		t.Fatal("maintenance enabled with no endpoint configured")
	}
}

func TestVersionErrorWithoutCache(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRemote(t)
	f.fail.Store(true)
	c, _ := newTestCache(t, srv.URL)

	if _, err := c.Version(context.Background()); err == nil {
		t.Fatal("expected error when nothing is cached and the fetch fails")
	}
}

func TestVersionRoundTrip(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRemote(t)
	f.version.Store(`{"version":"4.0.0","notes":"big one"}`)
	c, _ := newTestCache(t, srv.URL)

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Version != "4.0.0" || v.Notes != "big one" {
		t.Fatalf("got %+v", v)
	}
}

func TestRefreshWarmsCache(t *testing.T) {
	t.Parallel()
	f, srv := newFakeRemote(t)
	c, _ := newTestCache(t, srv.URL)

	c.Refresh(context.Background())
	before := f.hits.Load()
	c.Maintenance(context.Background())
	if f.hits.Load() != before {
		t.Fatal("maintenance check after refresh hit the network")
	}
}
