package kvstore

import (
	lspderrors "github.com/lspdaemon/lspd/internal/errors"
)

// Open opens a Backend per cfg. A Temporary config opens an in-memory
// backend (any Path is ignored, so nothing is written to disk);
// otherwise it opens the Badger-backed embedded LSM file store at
// cfg.Path.
func Open(cfg Config) (Backend, error) {
	if cfg.Temporary {
		return NewMemoryBackend(), nil
	}
	if cfg.Path == "" {
		return nil, lspderrors.NewConfigError("path", "", errEmptyPath)
	}
	return openBadger(cfg)
}

var errEmptyPath = configErr("a non-temporary backend requires a path")

type configErr string

func (e configErr) Error() string { return string(e) }
