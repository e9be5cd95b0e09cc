// Package access owns the actor capability data: the static operator set,
// the admin list and the time-limited premium roster. The two lists are
// persisted as JSON and hot-reloaded when edited externally.
package access

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
)

type Tier string

const (
	TierOwner   Tier = "owner"
	TierPremium Tier = "premium"
	TierFree    Tier = "free"
)

// Membership grants premium access to an actor until ExpiresAt.
type Membership struct {
	ID        int64     `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Roster struct {
	log zerolog.Logger

	owners map[int64]struct{}

	mu          sync.Mutex
	admins      []int64
	premium     []Membership
	adminPath   string
	premiumPath string
}

func NewRoster(dataDir string, owners []int64, log zerolog.Logger) (*Roster, error) {
	r := &Roster{
		log:         log,
		owners:      make(map[int64]struct{}, len(owners)),
		adminPath:   filepath.Join(dataDir, "admin.json"),
		premiumPath: filepath.Join(dataDir, "premium.json"),
	}
	for _, id := range owners {
		r.owners[id] = struct{}{}
	}
	if _, err := store.LoadJSON(r.adminPath, &r.admins); err != nil {
		return nil, err
	}
	if _, err := store.LoadJSON(r.premiumPath, &r.premium); err != nil {
		return nil, err
	}
	return r, nil
}

// Watch reloads the admin and premium files when something else rewrites
// them. Reload errors keep the last good in-memory state.
func (r *Roster) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and atomic renames replace the inode.
	if err := w.Add(filepath.Dir(r.premiumPath)); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				switch ev.Name {
				case r.adminPath:
					r.reloadAdmins()
				case r.premiumPath:
					r.reloadPremium()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Warn().Err(err).Msg("roster watch error")
			}
		}
	}()
	return nil
}

func (r *Roster) reloadAdmins() {
	var admins []int64
	found, err := store.LoadJSON(r.adminPath, &admins)
	if err != nil || !found {
		if err != nil {
			r.log.Warn().Err(err).Msg("admin list reload failed, keeping previous")
		}
		return
	}
	r.mu.Lock()
	r.admins = admins
	r.mu.Unlock()
	r.log.Info().Int("count", len(admins)).Msg("admin list reloaded")
}

func (r *Roster) reloadPremium() {
	var premium []Membership
	found, err := store.LoadJSON(r.premiumPath, &premium)
	if err != nil || !found {
		if err != nil {
			r.log.Warn().Err(err).Msg("premium list reload failed, keeping previous")
		}
		return
	}
	r.mu.Lock()
	r.premium = premium
	r.mu.Unlock()
	r.log.Info().Int("count", len(premium)).Msg("premium list reloaded")
}

func (r *Roster) IsOwner(id int64) bool {
	_, ok := r.owners[id]
	return ok
}

// IsAdmin reports admin capability; owners are implicitly admins.
func (r *Roster) IsAdmin(id int64) bool {
	if r.IsOwner(id) {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a == id {
			return true
		}
	}
	return false
}

func (r *Roster) IsPremium(id int64, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.premium {
		if m.ID == id && m.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

func (r *Roster) TierOf(id int64, now time.Time) Tier {
	if r.IsOwner(id) {
		return TierOwner
	}
	if r.IsPremium(id, now) {
		return TierPremium
	}
	return TierFree
}

// GrantPremium adds the actor or extends an existing membership. It reports
// whether the actor was already on the list.
func (r *Roster) GrantPremium(id int64, until time.Time) (existed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.premium {
		if r.premium[i].ID == id {
			r.premium[i].ExpiresAt = until
			return true, store.SaveJSON(r.premiumPath, r.premium)
		}
	}
	r.premium = append(r.premium, Membership{ID: id, ExpiresAt: until})
	return false, store.SaveJSON(r.premiumPath, r.premium)
}

func (r *Roster) RevokePremium(id int64) (removed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.premium {
		if r.premium[i].ID == id {
			r.premium = append(r.premium[:i], r.premium[i+1:]...)
			return true, store.SaveJSON(r.premiumPath, r.premium)
		}
	}
	return false, nil
}

// Premium returns a snapshot sorted by expiry.
func (r *Roster) Premium() []Membership {
	r.mu.Lock()
	out := make([]Membership, len(r.premium))
	copy(out, r.premium)
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

func (r *Roster) ActivePremiumCount(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.premium {
		if m.ExpiresAt.After(now) {
			n++
		}
	}
	return n
}

func (r *Roster) AddAdmin(id int64) (added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.admins {
		if a == id {
			return false, nil
		}
	}
	r.admins = append(r.admins, id)
	return true, store.SaveJSON(r.adminPath, r.admins)
}

func (r *Roster) RemoveAdmin(id int64) (removed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.admins {
		if a == id {
			r.admins = append(r.admins[:i], r.admins[i+1:]...)
			return true, store.SaveJSON(r.adminPath, r.admins)
		}
	}
	return false, nil
}

// PruneExpired drops memberships whose expiry has passed. Expiry checks do
// not depend on this; it is storage hygiene only.
func (r *Roster) PruneExpired(now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.premium[:0]
	for _, m := range r.premium {
		if m.ExpiresAt.After(now) {
			kept = append(kept, m)
		}
	}
	dropped := len(r.premium) - len(kept)
	if dropped == 0 {
		return 0, nil
	}
	r.premium = kept
	return dropped, store.SaveJSON(r.premiumPath, r.premium)
}
