// Package remotecfg fetches and caches small JSON control documents
// (maintenance kill-switch, version) from a remote raw-file endpoint.
//
// Values are cached for a TTL. When a fetch fails and a cached value exists
// (even an expired one) the stale value is returned: for a kill-switch,
// briefly serving during an intended outage costs less than refusing
// service over a transient network blip. Only a fetch failure with no prior
// value propagates to the caller.
package remotecfg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	maintenanceKey = "maintenance.json"
	versionKey     = "version.json"

	DefaultTTL          = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// Maintenance is the remote kill-switch document.
type Maintenance struct {
	Enabled       bool   `json:"maintenance"`
	Reason        string `json:"reason"`
	AllowOperator bool   `json:"allowOwner"`
}

// Version is the remote release document used by the update check.
type Version struct {
	Version string `json:"version"`
	Notes   string `json:"notes,omitempty"`
}

type entry struct {
	raw       []byte
	fetchedAt time.Time
}

// State is a snapshot of the maintenance key for status reporting.
type State struct {
	Maintenance Maintenance
	LastChecked time.Time
	LastErr     error
}

type Cache struct {
	log     zerolog.Logger
	baseURL string
	ttl     time.Duration
	client  *http.Client

	mu      sync.Mutex
	entries map[string]entry

	lastMaint   Maintenance
	lastChecked time.Time
	lastErr     error

	now func() time.Time
}

func New(baseURL string, ttl, fetchTimeout time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Cache{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		client:  &http.Client{Timeout: fetchTimeout},
		entries: make(map[string]entry),
		lastMaint: Maintenance{
			Reason: "System Maintenance",
		},
		now: time.Now,
	}
}

// Enabled reports whether a remote endpoint is configured at all.
func (c *Cache) Enabled() bool { return c.baseURL != "" }

// get returns the cached raw document for key while fresh, refetching
// otherwise. On fetch failure a stale cached value is returned if one
// exists, with fetchErr recording the failure; without one the error
// propagates through err.
func (c *Cache) get(ctx context.Context, key string) (raw []byte, fetchErr, err error) {
	c.mu.Lock()
	e, ok := c.entries[key]
	ttl := c.ttl
	now := c.now()
	c.mu.Unlock()

	if ok && now.Sub(e.fetchedAt) < ttl {
		return e.raw, nil, nil
	}

	raw, ferr := c.fetch(ctx, key)
	if ferr != nil {
		if ok {
			c.log.Warn().Err(ferr).Str("key", key).Msg("remote fetch failed, using cached value")
			return e.raw, ferr, nil
		}
		return nil, ferr, ferr
	}

	c.mu.Lock()
	c.entries[key] = entry{raw: raw, fetchedAt: now}
	c.mu.Unlock()
	return raw, nil, nil
}

func (c *Cache) fetch(ctx context.Context, key string) ([]byte, error) {
	url := c.baseURL + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// Maintenance returns the remote kill-switch state. With no endpoint
// configured the switch is permanently off. Fetch or decode failures fall
// back to the last known state.
func (c *Cache) Maintenance(ctx context.Context) Maintenance {
	if !c.Enabled() {
		return Maintenance{}
	}
	raw, fetchErr, err := c.get(ctx, maintenanceKey)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err
		last := c.lastMaint
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("maintenance check failed, keeping last state")
		return last
	}

	var m Maintenance
	if uerr := json.Unmarshal(raw, &m); uerr != nil {
		c.mu.Lock()
		c.lastErr = uerr
		last := c.lastMaint
		c.mu.Unlock()
		c.log.Error().Err(uerr).Msg("maintenance document malformed, keeping last state")
		return last
	}
	if m.Reason == "" {
		m.Reason = "System Maintenance"
	}

	c.mu.Lock()
	if m.Enabled != c.lastMaint.Enabled {
		c.log.Info().Bool("enabled", m.Enabled).Str("reason", m.Reason).Bool("allow_operator", m.AllowOperator).Msg("remote maintenance state changed")
	}
	c.lastMaint = m
	c.lastChecked = c.now()
	c.lastErr = fetchErr
	c.mu.Unlock()
	return m
}

// Version fetches the remote release document, bypassing staleness only via
// the normal TTL. Errors propagate: an update check has no useful stale
// answer beyond what get() already provides.
func (c *Cache) Version(ctx context.Context) (Version, error) {
	if !c.Enabled() {
		return Version{}, fmt.Errorf("remote endpoint not configured")
	}
	raw, _, err := c.get(ctx, versionKey)
	if err != nil {
		return Version{}, err
	}
	var v Version
	if err := json.Unmarshal(raw, &v); err != nil {
		return Version{}, err
	}
	return v, nil
}

// State snapshots the maintenance key for status displays.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Maintenance: c.lastMaint, LastChecked: c.lastChecked, LastErr: c.lastErr}
}

// Refresh proactively warms the maintenance key so the first command after
// an idle stretch does not pay the fetch latency. Run on a fixed schedule.
func (c *Cache) Refresh(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	c.Maintenance(ctx)
}
