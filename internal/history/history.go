// Package history keeps one record per actor ever seen, persisted after
// every mutation. Records are never deleted.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
)

type Record struct {
	ActorID    int64     `json:"telegramId"`
	Username   string    `json:"telegramUsername,omitempty"`
	Number     string    `json:"waNumber,omitempty"`
	JoinedAt   time.Time `json:"joinedAt"`
	LastActive time.Time `json:"lastActive"`
}

type Registry struct {
	log zerolog.Logger

	mu      sync.Mutex
	records map[int64]*Record
	path    string

	now func() time.Time
}

func NewRegistry(path string, log zerolog.Logger) (*Registry, error) {
	r := &Registry{
		log:     log,
		records: make(map[int64]*Record),
		path:    path,
		now:     time.Now,
	}
	var list []*Record
	if _, err := store.LoadJSON(path, &list); err != nil {
		return nil, err
	}
	for _, rec := range list {
		r.records[rec.ActorID] = rec
	}
	return r, nil
}

// Touch records activity for the actor, creating the record on first sight.
// A username fills in only if none is known yet.
func (r *Registry) Touch(actor int64, username string) {
	r.mu.Lock()
	now := r.now()
	rec, ok := r.records[actor]
	if !ok {
		rec = &Record{ActorID: actor, Username: username, JoinedAt: now}
		r.records[actor] = rec
	}
	rec.LastActive = now
	if username != "" && rec.Username == "" {
		rec.Username = username
	}
	r.mu.Unlock()

	if err := r.save(); err != nil {
		r.log.Error().Err(err).Msg("history save failed")
	}
}

// SetNumber remembers the network number an actor paired with.
func (r *Registry) SetNumber(actor int64, number string) {
	r.mu.Lock()
	if rec, ok := r.records[actor]; ok {
		rec.Number = number
	}
	r.mu.Unlock()

	if err := r.save(); err != nil {
		r.log.Error().Err(err).Msg("history save failed")
	}
}

func (r *Registry) save() error {
	r.mu.Lock()
	list := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		c := *rec
		list = append(list, &c)
	}
	r.mu.Unlock()
	sort.Slice(list, func(i, j int) bool { return list[i].ActorID < list[j].ActorID })
	return store.SaveJSON(r.path, list)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ActorIDs returns every known actor id (broadcast recipient snapshot).
func (r *Registry) ActorIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, len(r.records))
	for id := range r.records {
		out = append(out, id)
	}
	return out
}

// FindByUsername resolves an "@name" target to its record.
func (r *Registry) FindByUsername(name string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Username == name {
			return *rec, true
		}
	}
	return Record{}, false
}

// ActiveSince counts actors whose last activity is at or after t.
func (r *Registry) ActiveSince(t time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if !rec.LastActive.Before(t) {
			n++
		}
	}
	return n
}

// Page returns records newest-joined first, pageSize at a time (1-based
// page), plus the total page count.
func (r *Registry) Page(page, pageSize int) ([]Record, int) {
	r.mu.Lock()
	list := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		list = append(list, *rec)
	}
	r.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].JoinedAt.After(list[j].JoinedAt) })

	totalPages := (len(list) + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 || page > totalPages {
		return nil, totalPages
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], totalPages
}
