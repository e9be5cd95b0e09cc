package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// fileStore is the dependency-free persistence backend.
//
// Files:
//   - <prefix>.audit.jsonl (append-only JSON Lines)
//   - <prefix>.errors.json (rolling tail, most recent ErrorTailSize entries)
type fileStore struct {
	log zerolog.Logger

	mu        sync.Mutex
	auditFile *os.File

	errorsPath string
	errors     []ErrorEntry
}

func openFile(cfg Config, log zerolog.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(filepath.Base(path)))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	s := &fileStore{
		log:        log,
		auditFile:  af,
		errorsPath: prefix + ".errors.json",
	}
	if _, err := LoadJSON(s.errorsPath, &s.errors); err != nil {
		log.Warn().Err(err).Msg("error tail unreadable, starting empty")
		s.errors = nil
	}
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) AppendError(ctx context.Context, e ErrorEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
	if len(s.errors) > ErrorTailSize {
		s.errors = s.errors[len(s.errors)-ErrorTailSize:]
	}
	return SaveJSON(s.errorsPath, s.errors)
}

func (s *fileStore) RecentErrors(ctx context.Context, limit int) ([]ErrorEntry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.errors) {
		limit = len(s.errors)
	}
	out := make([]ErrorEntry, limit)
	copy(out, s.errors[len(s.errors)-limit:])
	return out, nil
}
