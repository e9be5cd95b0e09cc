// Package cooldown rate-limits privileged actions per actor, with one
// window per access tier.
package cooldown

import (
	"math"
	"regexp"
	"sync"
	"time"

	"github.com/JojoKaizeb/GenXuzoProject/internal/access"
	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
)

// Windows holds the per-tier cooldown durations. Zero means no cooldown.
type Windows struct {
	Free    time.Duration
	Premium time.Duration
	Owner   time.Duration
}

func (w Windows) forTier(tier access.Tier) time.Duration {
	switch tier {
	case access.TierOwner:
		return w.Owner
	case access.TierPremium:
		return w.Premium
	default:
		return w.Free
	}
}

// persisted wire form, in whole seconds like the rest of the state files.
type windowsFile struct {
	Free    int64 `json:"free"`
	Premium int64 `json:"premium"`
	Owner   int64 `json:"owner"`
}

type Registry struct {
	mu      sync.Mutex
	windows Windows
	entries map[int64]time.Time
	path    string

	now func() time.Time
}

// NewRegistry loads persisted windows from path if present, otherwise
// starts with defaults.
func NewRegistry(path string, defaults Windows) (*Registry, error) {
	r := &Registry{
		windows: defaults,
		entries: make(map[int64]time.Time),
		path:    path,
		now:     time.Now,
	}
	var wf windowsFile
	found, err := store.LoadJSON(path, &wf)
	if err != nil {
		return nil, err
	}
	if found {
		r.windows = Windows{
			Free:    time.Duration(wf.Free) * time.Second,
			Premium: time.Duration(wf.Premium) * time.Second,
			Owner:   time.Duration(wf.Owner) * time.Second,
		}
	}
	return r, nil
}

// CheckAndReserve permits the action (returning 0 and recording the use) or
// returns the whole seconds remaining, rounded up. A blocked attempt never
// extends the actor's window.
func (r *Registry) CheckAndReserve(actor int64, tier access.Tier) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	window := r.windows.forTier(tier)
	if window <= 0 {
		return 0
	}
	now := r.now()
	if last, ok := r.entries[actor]; ok {
		if remaining := window - now.Sub(last); remaining > 0 {
			return int(math.Ceil(remaining.Seconds()))
		}
	}
	r.entries[actor] = now
	return 0
}

func (r *Registry) Windows() Windows {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows
}

// SetWindows applies the non-nil fields and persists the result.
func (r *Registry) SetWindows(free, premium, owner *time.Duration) (Windows, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if free != nil {
		r.windows.Free = *free
	}
	if premium != nil {
		r.windows.Premium = *premium
	}
	if owner != nil {
		r.windows.Owner = *owner
	}
	wf := windowsFile{
		Free:    int64(r.windows.Free / time.Second),
		Premium: int64(r.windows.Premium / time.Second),
		Owner:   int64(r.windows.Owner / time.Second),
	}
	return r.windows, store.SaveJSON(r.path, wf)
}

// Evict drops entries older than every configured window. Correctness never
// depends on eviction; CheckAndReserve re-derives expiry from timestamps.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := r.windows.Free
	if r.windows.Premium > max {
		max = r.windows.Premium
	}
	if r.windows.Owner > max {
		max = r.windows.Owner
	}
	n := 0
	for id, last := range r.entries {
		if now.Sub(last) >= max {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

// Update is a partial window change parsed from operator input.
type Update struct {
	Free    *time.Duration
	Premium *time.Duration
	Owner   *time.Duration
}

func (u Update) Empty() bool { return u.Free == nil && u.Premium == nil && u.Owner == nil }

var updateFieldRe = map[string]*regexp.Regexp{
	"free":    regexp.MustCompile(`(?i)free:\s*(\S+)`),
	"premium": regexp.MustCompile(`(?i)premium:\s*(\S+)`),
	"owner":   regexp.MustCompile(`(?i)owner:\s*(\S+)`),
}

// ParseUpdate reads "free:5m premium:1m owner:0" style input. Each field is
// validated independently: invalid fields are reported without discarding
// the valid ones.
func ParseUpdate(input string) (Update, []error) {
	var (
		u    Update
		errs []error
	)
	set := func(dst **time.Duration, raw string) {
		d, err := ParseWindow(raw)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = &d
	}
	if m := updateFieldRe["free"].FindStringSubmatch(input); m != nil {
		set(&u.Free, m[1])
	}
	if m := updateFieldRe["premium"].FindStringSubmatch(input); m != nil {
		set(&u.Premium, m[1])
	}
	if m := updateFieldRe["owner"].FindStringSubmatch(input); m != nil {
		set(&u.Owner, m[1])
	}
	return u, errs
}
