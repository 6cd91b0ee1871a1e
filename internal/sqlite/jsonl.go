// This file provides JSONL read/write helpers with atomic persistence, and
// the settings.jsonl load, export and import paths.
package sqlite

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err = w.Write(rec); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
		if err = w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// ensureJSONLFile creates an empty file at path if none exists.
func ensureJSONLFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// dumpSettings returns every settings row as JSON, ordered by user and grid.
func dumpSettings(db *sql.DB) ([]json.RawMessage, error) {
	rows, err := db.Query("SELECT " + settingsColumns + " FROM grid_settings ORDER BY user_id ASC, grid_id ASC")
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		s, err := hydrateSettings(rows)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encoding settings %s: %w", s.SettingsID, err)
		}
		records = append(records, data)
	}
	return records, rows.Err()
}

// persistSettingsJSONL rewrites path with the current table contents.
func persistSettingsJSONL(db *sql.DB, path string) error {
	records, err := dumpSettings(db)
	if err != nil {
		return err
	}
	return writeJSONL(path, records)
}

// loadJSONLLocked upserts every valid record of path and returns how many
// were loaded. Records missing keys or with invalid values are skipped.
// The caller must hold b.mu.
func (b *Backend) loadJSONLLocked(path string) (int, error) {
	records, err := readJSONL(path)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, raw := range records {
		var s types.PersistentSettings
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s.UserID == "" || s.GridID == "" || s.PageSize < 1 || s.SortField == "" || !s.SortDirection.Valid() {
			continue
		}
		if err := b.upsertLocked(context.Background(), &s); err != nil {
			return loaded, fmt.Errorf("loading settings %s/%s: %w", s.UserID, s.GridID, err)
		}
		loaded++
	}
	return loaded, nil
}

// ExportJSONL writes every settings record to path and returns the count.
func (b *Backend) ExportJSONL(path string) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}

	records, err := dumpSettings(b.db)
	if err != nil {
		return 0, err
	}
	if err := writeJSONL(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// ImportJSONL upserts every valid record of path and returns the count.
// Existing rows for the same (user, grid) keep their ID and creation time.
func (b *Backend) ImportJSONL(path string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}

	n, err := b.loadJSONLLocked(path)
	if err != nil {
		return n, err
	}
	if n > 0 {
		if err := b.afterWrite(); err != nil {
			return n, fmt.Errorf("persisting %s: %w", settingsJSONL, err)
		}
	}
	return n, nil
}
