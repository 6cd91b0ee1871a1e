// Display state, durable settings and request parameters.
package types

import (
	"maps"
	"slices"
	"time"
)

// DisplayState is the effective configuration of one grid render.
// VisibleColumns order is the display order. CurrentPage and FilterValues
// live only in the session; the other four fields are durable.
type DisplayState struct {
	VisibleColumns []string       `json:"visible_columns"`
	PageSize       int            `json:"page_size"`
	SortField      string         `json:"sort_field"`
	SortDirection  SortDirection  `json:"sort_direction"`
	CurrentPage    int            `json:"current_page"`
	FilterValues   map[string]any `json:"filter_values"`
}

// Durable returns the fields of s that may be persisted per user.
func (s DisplayState) Durable() DurableSettings {
	return DurableSettings{
		VisibleColumns: slices.Clone(s.VisibleColumns),
		PageSize:       s.PageSize,
		SortField:      s.SortField,
		SortDirection:  s.SortDirection,
	}
}

// Clone returns a deep copy of s. Filter values are copied one level deep;
// slice values are cloned so callers can mutate the copy freely.
func (s DisplayState) Clone() DisplayState {
	c := s
	c.VisibleColumns = slices.Clone(s.VisibleColumns)
	c.FilterValues = make(map[string]any, len(s.FilterValues))
	for k, v := range s.FilterValues {
		c.FilterValues[k] = cloneFilterValue(v)
	}
	return c
}

func cloneFilterValue(v any) any {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case []any:
		return slices.Clone(t)
	case map[string]any:
		return maps.Clone(t)
	default:
		return v
	}
}

// DurableSettings are the four fields a user can persist for a grid.
type DurableSettings struct {
	VisibleColumns []string      `json:"visible_columns"`
	PageSize       int           `json:"page_size"`
	SortField      string        `json:"sort_field"`
	SortDirection  SortDirection `json:"sort_direction"`
}

// Equal reports whether d and o hold the same values. Column order counts.
func (d DurableSettings) Equal(o DurableSettings) bool {
	return d.PageSize == o.PageSize &&
		d.SortField == o.SortField &&
		d.SortDirection == o.SortDirection &&
		slices.Equal(d.VisibleColumns, o.VisibleColumns)
}

// PersistentSettings is the stored settings record of one (user, grid) pair.
type PersistentSettings struct {
	// SettingsID is a UUID v7, generated on first save.
	SettingsID string `json:"settings_id"`

	UserID string `json:"user_id"`
	GridID string `json:"grid_id"`

	DurableSettings

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestParams carries the grid-related values of one incoming request.
// All values are untrusted. Empty strings and nil collections mean the
// request did not mention the field.
type RequestParams struct {
	Sort          string
	SortDirection string
	Page          string
	PageSize      string

	// Reset rebuilds the whole state from grid defaults.
	Reset bool

	// ResetSort restores only the default sort.
	ResetSort bool

	// Columns replaces the visible column list, in order.
	Columns []string

	// ColumnToggles shows (true) or hides (false) single columns.
	ColumnToggles map[string]bool

	// Filters holds submitted filter values by filter name. An empty string
	// or empty list clears that filter.
	Filters map[string]any
}
