//go:build !sqlite
// +build !sqlite

package store

import (
	"errors"

	"github.com/rs/zerolog"
)

func openSQLite(cfg Config, log zerolog.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, errors.New(`sqlite storage requires building with -tags sqlite`)
}
