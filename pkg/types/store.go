package types

import (
	"context"
	"errors"
)

// SettingsStore persists per-user durable grid settings.
// Implementations are safe for concurrent use; the last upsert for a
// (user, grid) pair wins.
type SettingsStore interface {
	// GetSettings returns the record for the user and grid.
	// Returns ErrNotFound if the user never saved settings for the grid.
	GetSettings(ctx context.Context, userID, gridID string) (*PersistentSettings, error)

	// UpsertSettings creates or replaces the record keyed by
	// (s.UserID, s.GridID). SettingsID and CreatedAt are assigned on create.
	UpsertSettings(ctx context.Context, s *PersistentSettings) error

	// DeleteSettings removes the record for the user and grid.
	// Returns ErrNotFound if no record exists.
	DeleteSettings(ctx context.Context, userID, gridID string) error

	// ListSettings returns every record of the user ordered by grid ID.
	// An empty userID lists all records.
	ListSettings(ctx context.Context, userID string) ([]*PersistentSettings, error)
}

// SessionStore holds volatile display state per (session, grid).
type SessionStore interface {
	// GetState returns the state saved for the session and grid.
	// Returns ErrNotFound when the session has not rendered the grid yet.
	GetState(ctx context.Context, sessionID, gridID string) (*DisplayState, error)

	// PutState replaces the state saved for the session and grid.
	PutState(ctx context.Context, sessionID, gridID string, state DisplayState) error

	// DeleteSession drops every grid state of the session. Idempotent.
	DeleteSession(ctx context.Context, sessionID string) error
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrInvalidPath     = errors.New("store path must not be empty")
)

// Record operation errors.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrInvalidID   = errors.New("invalid entity ID")
	ErrInvalidData = errors.New("invalid entity data")
)
