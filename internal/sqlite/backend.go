// Package sqlite implements the SQLite settings backend for crudgrid.
//
// settings.jsonl in DataDir is the source of truth; SQLite is the query
// engine. Attach rebuilds the database from the JSONL file and every write
// is mirrored back to it according to the configured sync strategy.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

var _ types.SettingsStore = (*Backend)(nil)

// Backend implements types.SettingsStore on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	now      func() time.Time

	// Sync strategy state.
	syncStrategy  string        // effective sync strategy: immediate, on_close, batch
	batchSize     int           // number of writes before batch flush
	batchInterval time.Duration // time between batch flushes
	pendingWrites int           // writes not yet mirrored to settings.jsonl
	batchTimer    *time.Timer   // timer for interval-based batch flush
	batchMu       sync.Mutex    // protects pendingWrites and batchTimer
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{now: time.Now}
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, rebuilds the SQLite database and
// loads settings.jsonl into it.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The database is a cache of settings.jsonl; start from a fresh file.
	dbPath := filepath.Join(dataDir, dbFileName)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps transactions simple.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.config.DataDir = dataDir

	b.syncStrategy = config.SQLiteConfig.GetSyncStrategy()
	b.batchSize = config.SQLiteConfig.GetBatchSize()
	b.batchInterval = time.Duration(config.SQLiteConfig.GetBatchInterval()) * time.Second
	b.pendingWrites = 0

	if err := ensureJSONLFile(b.jsonlPath()); err != nil {
		db.Close()
		b.db = nil
		return err
	}
	if _, err := b.loadJSONLLocked(b.jsonlPath()); err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("load JSONL: %w", err)
	}

	if b.syncStrategy == types.SyncBatch && b.batchInterval > 0 {
		b.startBatchTimer()
	}

	b.attached = true
	return nil
}

// Detach flushes pending JSONL writes and closes the database.
// Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	b.stopBatchTimer()

	if err := b.flushLocked(); err != nil {
		return fmt.Errorf("flush pending writes: %w", err)
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	return nil
}

// DataDir returns the directory the backend is attached to.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

func (b *Backend) jsonlPath() string {
	return filepath.Join(b.config.DataDir, settingsJSONL)
}

// generateUUID generates a new UUID v7 for record IDs.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}

// afterWrite mirrors a committed write to settings.jsonl according to the
// sync strategy. The caller must hold b.mu.
func (b *Backend) afterWrite() error {
	if b.syncStrategy == types.SyncImmediate || b.syncStrategy == "" {
		return persistSettingsJSONL(b.db, b.jsonlPath())
	}

	b.batchMu.Lock()
	b.pendingWrites++
	flush := b.syncStrategy == types.SyncBatch && b.pendingWrites >= b.batchSize
	b.batchMu.Unlock()

	if flush {
		return b.flushLocked()
	}
	return nil
}

// flushLocked rewrites settings.jsonl if writes are pending.
// The caller must hold b.mu.
func (b *Backend) flushLocked() error {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.pendingWrites == 0 || b.db == nil {
		return nil
	}
	if err := persistSettingsJSONL(b.db, b.jsonlPath()); err != nil {
		return err
	}
	b.pendingWrites = 0
	return nil
}

// Flush forces pending writes to settings.jsonl.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.flushLocked()
}

// startBatchTimer starts the periodic flush for the batch strategy.
func (b *Backend) startBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		return
	}

	b.batchTimer = time.AfterFunc(b.batchInterval, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if !b.attached {
			return
		}

		_ = b.flushLocked()

		b.batchMu.Lock()
		if b.batchTimer != nil {
			b.batchTimer.Reset(b.batchInterval)
		}
		b.batchMu.Unlock()
	})
}

// stopBatchTimer stops the batch interval timer if running.
func (b *Backend) stopBatchTimer() {
	b.batchMu.Lock()
	defer b.batchMu.Unlock()

	if b.batchTimer != nil {
		b.batchTimer.Stop()
		b.batchTimer = nil
	}
}
