// Copyright (C) 2025 smirnov0ser
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/smirnov0ser/mcp1c-metadata/services/metadata/observability"
)

// treeKeyPrefix namespaces cached forests inside the store.
const treeKeyPrefix = "tree:"

// CacheConfig configures the tree cache store.
type CacheConfig struct {
	// Path is the directory for BadgerDB files. Required unless InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for
	// testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives cache diagnostics. If nil, slog.Default() is used
	// and BadgerDB's internal logging is disabled either way.
	Logger *slog.Logger

	// Metrics is the optional metric bundle for hit/miss accounting.
	Metrics *observability.Metrics
}

// TreeCache persists parsed forests so repeated runs skip re-parsing.
//
// A cached forest is returned verbatim with no validation against the source
// file's current content: a stale cache is indistinguishable from a fresh
// one, and deleting the entry (Invalidate or Drop) is the only way to force
// a rebuild.
//
// Thread Safety:
//
//	TreeCache is safe for concurrent use; BadgerDB provides the locking.
type TreeCache struct {
	db      *badger.DB
	logger  *slog.Logger
	metrics *observability.Metrics
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenTreeCache opens the cache store at the configured path, creating the
// directory if needed.
func OpenTreeCache(cfg CacheConfig) (*TreeCache, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("metadata: cache path is required for persistent store")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)
	opts = opts.WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open tree cache: %w", err)
	}
	return &TreeCache{db: db, logger: logger, metrics: cfg.Metrics}, nil
}

// Close releases the underlying store.
func (c *TreeCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// LoadOrBuild returns the cached forest for sourcePath, or builds one.
//
// On a hit the stored forest is deserialized and returned verbatim,
// normalized shadow state included, with no warnings (the build that
// produced them is long gone). On a miss build is invoked and its result
// persisted before returning; a failed persist degrades to rebuild-on-
// every-run and is logged, never surfaced. A cached entry that fails to
// deserialize is reported as ErrCorruptCache for the query boundary to
// translate.
func (c *TreeCache) LoadOrBuild(sourcePath string, build func() (*Tree, []ParseWarning)) (*Tree, []ParseWarning, error) {
	if c == nil || c.db == nil {
		return nil, nil, ErrCacheClosed
	}
	key := []byte(treeKeyPrefix + sourcePath)

	var cached []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		cached, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case err == nil:
		tree := &Tree{}
		if uerr := json.Unmarshal(cached, tree); uerr != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", ErrCorruptCache, sourcePath, uerr)
		}
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		c.logger.Debug("tree cache hit", "source", sourcePath, "nodes", tree.Len())
		return tree, nil, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		// fall through to build
	default:
		return nil, nil, fmt.Errorf("read tree cache: %w", err)
	}

	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
	tree, warnings := build()
	payload, err := json.Marshal(tree)
	if err != nil {
		c.logger.Warn("tree cache serialization failed", "source", sourcePath, "error", err)
		return tree, warnings, nil
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, payload)
	}); err != nil {
		c.logger.Warn("tree cache write failed", "source", sourcePath, "error", err)
	}
	c.logger.Debug("tree cache filled", "source", sourcePath, "nodes", tree.Len(), "bytes", len(payload))
	return tree, warnings, nil
}

// Invalidate deletes the cached forest for sourcePath.
func (c *TreeCache) Invalidate(sourcePath string) error {
	if c == nil || c.db == nil {
		return ErrCacheClosed
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(treeKeyPrefix + sourcePath))
	})
}

// Drop deletes every cached forest.
func (c *TreeCache) Drop() error {
	if c == nil || c.db == nil {
		return ErrCacheClosed
	}
	return c.db.DropAll()
}
