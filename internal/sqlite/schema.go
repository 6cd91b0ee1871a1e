// Package sqlite implements the SQLite settings backend for crudgrid.
// This file holds the schema DDL.
package sqlite

// Schema DDL for the settings table. Each (user_id, grid_id) pair owns at
// most one row.
const (
	createGridSettings = `CREATE TABLE IF NOT EXISTS grid_settings (
    settings_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    grid_id TEXT NOT NULL,
    visible_columns TEXT NOT NULL,
    page_size INTEGER NOT NULL CHECK (page_size > 0),
    sort_field TEXT NOT NULL,
    sort_direction TEXT NOT NULL CHECK (sort_direction IN ('asc', 'desc')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (user_id, grid_id)
);`

	createGridSettingsUserIndex = `CREATE INDEX IF NOT EXISTS idx_grid_settings_user ON grid_settings (user_id);`
)

// schemaStatements are executed in order on Attach.
var schemaStatements = []string{
	createGridSettings,
	createGridSettingsUserIndex,
}

// Column list shared by every SELECT so hydrate helpers stay in sync.
const settingsColumns = "settings_id, user_id, grid_id, visible_columns, page_size, sort_field, sort_direction, created_at, updated_at"

// File names inside DataDir.
const (
	dbFileName       = "settings.db"
	settingsJSONL    = "settings.jsonl"
	timestampsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)
