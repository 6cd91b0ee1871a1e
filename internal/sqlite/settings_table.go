// This file implements the grid_settings accessors of the SQLite backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// GetSettings retrieves the settings of one user for one grid.
func (b *Backend) GetSettings(ctx context.Context, userID, gridID string) (*types.PersistentSettings, error) {
	if userID == "" || gridID == "" {
		return nil, types.ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	row := b.db.QueryRowContext(ctx,
		"SELECT "+settingsColumns+" FROM grid_settings WHERE user_id = ? AND grid_id = ?",
		userID, gridID,
	)
	s, err := hydrateSettings(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting settings %s/%s: %w", userID, gridID, err)
	}
	return s, nil
}

// UpsertSettings creates or replaces the row keyed by (UserID, GridID).
// On create, SettingsID is a new UUID v7 and CreatedAt defaults to now; on
// update both keep their stored values. s is updated in place with the
// values written.
func (b *Backend) UpsertSettings(ctx context.Context, s *types.PersistentSettings) error {
	if s == nil {
		return types.ErrInvalidData
	}
	if s.UserID == "" || s.GridID == "" {
		return types.ErrInvalidID
	}
	if s.PageSize < 1 || !s.SortDirection.Valid() || s.SortField == "" {
		return types.ErrInvalidData
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	if err := b.upsertLocked(ctx, s); err != nil {
		return err
	}
	if err := b.afterWrite(); err != nil {
		return fmt.Errorf("persisting %s: %w", settingsJSONL, err)
	}
	return nil
}

// upsertLocked writes s inside one transaction. The caller must hold b.mu.
func (b *Backend) upsertLocked(ctx context.Context, s *types.PersistentSettings) error {
	cols, err := json.Marshal(nonNilColumns(s.VisibleColumns))
	if err != nil {
		return fmt.Errorf("encoding visible columns: %w", err)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID, existingCreated string
	err = tx.QueryRowContext(ctx,
		"SELECT settings_id, created_at FROM grid_settings WHERE user_id = ? AND grid_id = ?",
		s.UserID, s.GridID,
	).Scan(&existingID, &existingCreated)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking settings existence: %w", err)
	}

	now := b.now().UTC()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	if exists {
		created, err := time.Parse(timestampsLayout, existingCreated)
		if err != nil {
			return fmt.Errorf("parsing created_at: %w", err)
		}
		s.SettingsID = existingID
		s.CreatedAt = created
		_, err = tx.ExecContext(ctx,
			"UPDATE grid_settings SET visible_columns = ?, page_size = ?, sort_field = ?, sort_direction = ?, updated_at = ? WHERE settings_id = ?",
			string(cols), s.PageSize, s.SortField, string(s.SortDirection), s.UpdatedAt.UTC().Format(timestampsLayout), existingID,
		)
		if err != nil {
			return fmt.Errorf("updating settings: %w", err)
		}
	} else {
		if s.SettingsID == "" {
			s.SettingsID = generateUUID()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO grid_settings ("+settingsColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			s.SettingsID, s.UserID, s.GridID, string(cols), s.PageSize, s.SortField, string(s.SortDirection),
			s.CreatedAt.UTC().Format(timestampsLayout), s.UpdatedAt.UTC().Format(timestampsLayout),
		)
		if err != nil {
			return fmt.Errorf("inserting settings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing settings: %w", err)
	}
	return nil
}

// DeleteSettings removes the settings of one user for one grid.
func (b *Backend) DeleteSettings(ctx context.Context, userID, gridID string) error {
	if userID == "" || gridID == "" {
		return types.ErrInvalidID
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}

	res, err := b.db.ExecContext(ctx, "DELETE FROM grid_settings WHERE user_id = ? AND grid_id = ?", userID, gridID)
	if err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}

	if err := b.afterWrite(); err != nil {
		return fmt.Errorf("persisting %s: %w", settingsJSONL, err)
	}
	return nil
}

// ListSettings returns the settings of userID ordered by grid ID, or every
// row ordered by user then grid when userID is empty. The result is never nil.
func (b *Backend) ListSettings(ctx context.Context, userID string) ([]*types.PersistentSettings, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	query := "SELECT " + settingsColumns + " FROM grid_settings"
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY user_id ASC, grid_id ASC"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	results := []*types.PersistentSettings{}
	for rows.Next() {
		s, err := hydrateSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating settings: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return results, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// hydrateSettings converts a grid_settings row into a *types.PersistentSettings.
func hydrateSettings(row scanner) (*types.PersistentSettings, error) {
	var (
		s                  types.PersistentSettings
		cols, dir          string
		createdAt, updated string
	)
	if err := row.Scan(&s.SettingsID, &s.UserID, &s.GridID, &cols, &s.PageSize, &s.SortField, &dir, &createdAt, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cols), &s.VisibleColumns); err != nil {
		return nil, fmt.Errorf("parsing visible_columns: %w", err)
	}
	s.SortDirection = types.SortDirection(dir)

	var err error
	if s.CreatedAt, err = time.Parse(timestampsLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if s.UpdatedAt, err = time.Parse(timestampsLayout, updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &s, nil
}

func nonNilColumns(cols []string) []string {
	if cols == nil {
		return []string{}
	}
	return cols
}
