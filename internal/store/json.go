// Package store provides the gateway's durable storage: small JSON state
// files rewritten after every mutation, plus an audit/error log with file
// and sqlite drivers.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// LoadJSON reads path into v. A missing file is not an error; found reports
// whether anything was read.
func LoadJSON(path string, v any) (found bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, err
	}
	return true, nil
}

// SaveJSON writes v to path atomically (temp file + rename), creating the
// parent directory if needed.
func SaveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
