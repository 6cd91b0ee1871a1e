// Backend and session store configuration.
package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for SettingsStore.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// SQLiteConfig tunes when settings.jsonl is rewritten. Nil means
	// immediate sync.
	SQLiteConfig *SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite"`
}

// SQLiteConfig holds SQLite backend options.
type SQLiteConfig struct {
	// SyncStrategy is one of immediate, on_close, batch.
	SyncStrategy string `json:"sync_strategy" yaml:"sync_strategy"`

	// BatchSize is the number of queued writes that triggers a flush under
	// the batch strategy.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// BatchInterval is the flush period in seconds under the batch strategy.
	BatchInterval int `json:"batch_interval" yaml:"batch_interval"`
}

// Sync strategies for JSONL persistence.
const (
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
	SyncBatch     = "batch"
)

// Defaults applied by the SQLiteConfig getters.
const (
	DefaultBatchSize     = 10
	DefaultBatchInterval = 5
)

// GetSyncStrategy returns the configured strategy, or immediate.
func (c *SQLiteConfig) GetSyncStrategy() string {
	if c == nil || c.SyncStrategy == "" {
		return SyncImmediate
	}
	return c.SyncStrategy
}

// GetBatchSize returns the configured batch size, or the default.
func (c *SQLiteConfig) GetBatchSize() int {
	if c == nil || c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// GetBatchInterval returns the configured batch interval, or the default.
func (c *SQLiteConfig) GetBatchInterval() int {
	if c == nil || c.BatchInterval <= 0 {
		return DefaultBatchInterval
	}
	return c.BatchInterval
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSyncStrategyUnknown  = errors.New("unknown sync strategy")
	ErrBatchSizeInvalid     = errors.New("batch size must be positive")
	ErrBatchIntervalInvalid = errors.New("batch interval must be positive")
	ErrSessionTTLInvalid    = errors.New("session ttl must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if sc := c.SQLiteConfig; sc != nil {
		switch sc.GetSyncStrategy() {
		case SyncImmediate, SyncOnClose:
		case SyncBatch:
			if sc.BatchSize < 0 {
				return ErrBatchSizeInvalid
			}
			if sc.BatchInterval < 0 {
				return ErrBatchIntervalInvalid
			}
		default:
			return ErrSyncStrategyUnknown
		}
	}
	return nil
}

// SessionConfig holds parameters for opening a session store.
type SessionConfig struct {
	// Dir is the badger directory. Empty with InMemory false is invalid.
	Dir string `json:"dir" yaml:"dir"`

	// InMemory keeps session state in RAM only.
	InMemory bool `json:"in_memory" yaml:"in_memory"`

	// TTL expires idle session entries. Zero keeps them until deleted.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// Validate checks that the SessionConfig is well-formed.
func (c SessionConfig) Validate() error {
	if c.TTL < 0 {
		return ErrSessionTTLInvalid
	}
	if !c.InMemory && c.Dir == "" {
		return ErrInvalidPath
	}
	return nil
}
