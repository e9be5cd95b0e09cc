package gate

import (
	"sync"
	"time"

	"github.com/JojoKaizeb/GenXuzoProject/internal/store"
)

type localFile struct {
	Enabled bool      `json:"enabled"`
	Since   time.Time `json:"since,omitempty"`
}

// LocalState is the operator-controlled maintenance flag. Unlike the remote
// kill-switch it is toggled from inside the bot and survives restarts.
type LocalState struct {
	mu   sync.Mutex
	path string
	st   localFile
}

func LoadLocalState(path string) (*LocalState, error) {
	s := &LocalState{path: path}
	if _, err := store.LoadJSON(path, &s.st); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalState) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Enabled
}

func (s *LocalState) Since() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Since
}

// Set toggles maintenance mode and reports whether the flag changed.
func (s *LocalState) Set(enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Enabled == enabled {
		return false, nil
	}
	s.st.Enabled = enabled
	if enabled {
		s.st.Since = time.Now()
	} else {
		s.st.Since = time.Time{}
	}
	return true, store.SaveJSON(s.path, s.st)
}
