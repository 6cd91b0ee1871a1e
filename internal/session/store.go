// Package session stores volatile grid display state per browser session in
// BadgerDB, on disk or in memory.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

var _ types.SessionStore = (*Store)(nil)

// keyPrefix namespaces session entries inside the database.
const keyPrefix = "session/"

// gcInterval and gcDiscardRatio drive value log garbage collection for
// on-disk stores.
const (
	gcInterval     = 5 * time.Minute
	gcDiscardRatio = 0.5
)

// Store implements types.SessionStore on BadgerDB.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	closeOnce sync.Once
	stopGC    chan struct{}
	gcDone    chan struct{}
}

// Open opens a session store. An on-disk store runs value log GC in the
// background until Close.
func Open(cfg types.SessionConfig, logger *slog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create session directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}

	s := &Store{db: db, ttl: cfg.TTL, logger: logger}
	if !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC()
	}
	return s, nil
}

// Close stops background GC and closes the database. Idempotent.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

func stateKey(sessionID, gridID string) []byte {
	return []byte(keyPrefix + sessionID + "/" + gridID)
}

func sessionPrefix(sessionID string) []byte {
	return []byte(keyPrefix + sessionID + "/")
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "/")
}

// GetState returns the state of the grid in the session, or ErrNotFound.
func (s *Store) GetState(ctx context.Context, sessionID, gridID string) (*types.DisplayState, error) {
	if !validID(sessionID) || gridID == "" {
		return nil, types.ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var state types.DisplayState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey(sessionID, gridID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}
	return &state, nil
}

// PutState replaces the state of the grid in the session. With a TTL
// configured, each write extends the entry's lifetime.
func (s *Store) PutState(ctx context.Context, sessionID, gridID string, state types.DisplayState) error {
	if !validID(sessionID) || gridID == "" {
		return types.ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(stateKey(sessionID, gridID), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}
	return nil
}

// DeleteSession removes every grid state of the session.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if !validID(sessionID) {
		return types.ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.DropPrefix(sessionPrefix(sessionID))
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Grids lists the grid IDs with state in the session.
func (s *Store) Grids(ctx context.Context, sessionID string) ([]string, error) {
	if !validID(sessionID) {
		return nil, types.ErrInvalidID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := sessionPrefix(sessionID)
	grids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			grids = append(grids, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing session grids: %w", err)
	}
	return grids, nil
}

func (s *Store) runGC() {
	defer close(s.gcDone)

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(gcDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("session value log GC failed", "error", err)
			}
		}
	}
}

// badgerLogger adapts slog.Logger to badger.Logger. Badger's info output is
// demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
