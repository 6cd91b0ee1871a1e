// Static grid definitions: columns, filters, page sizes and default sort.
package types

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SortDirection is the ordering applied to the sort field.
type SortDirection string

// Sort directions.
const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// ParseSortDirection parses an untrusted direction value. Matching is case
// insensitive and accepts the long forms "ascending" and "descending".
// ok is false for anything else.
func ParseSortDirection(s string) (SortDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return SortAscending, true
	case "desc", "descending":
		return SortDescending, true
	default:
		return "", false
	}
}

// Valid reports whether d is one of the two known directions.
func (d SortDirection) Valid() bool {
	return d == SortAscending || d == SortDescending
}

// Filter type constants.
const (
	FilterTypeText    = "text"
	FilterTypeChoice  = "choice"
	FilterTypeBoolean = "boolean"
	FilterTypeDate    = "date"
)

// FilterTypes lists the accepted Filter.Type values.
var FilterTypes = []string{FilterTypeText, FilterTypeChoice, FilterTypeBoolean, FilterTypeDate}

// Column is one declared grid column.
type Column struct {
	// Name identifies the column in requests, state and settings.
	Name string `json:"name" yaml:"name" validate:"required,max=64"`

	// Label is the header text shown to users.
	Label string `json:"label,omitempty" yaml:"label"`

	// Sortable marks the column as a valid sort field.
	Sortable bool `json:"sortable" yaml:"sortable"`

	// Displayed marks the column as visible by default.
	Displayed bool `json:"displayed" yaml:"displayed"`
}

// Filter is one declared grid filter.
type Filter struct {
	Name     string `json:"name" yaml:"name" validate:"required,max=64"`
	Label    string `json:"label,omitempty" yaml:"label"`
	Type     string `json:"type" yaml:"type" validate:"omitempty,filter_type"`
	Multiple bool   `json:"multiple" yaml:"multiple"`
}

// GridConfig is the static, read-only definition of one grid.
type GridConfig struct {
	// ID is the grid identifier used to key session state and settings.
	ID string `json:"id" yaml:"id" validate:"required,max=128"`

	Columns []Column `json:"columns" yaml:"columns" validate:"required,min=1,dive"`
	Filters []Filter `json:"filters,omitempty" yaml:"filters" validate:"dive"`

	// PageSizes lists the allowed page sizes in display order.
	PageSizes       []int `json:"page_sizes" yaml:"page_sizes" validate:"required,min=1,dive,gt=0"`
	DefaultPageSize int   `json:"default_page_size" yaml:"default_page_size" validate:"gt=0"`

	DefaultSort          string        `json:"default_sort" yaml:"default_sort" validate:"required"`
	DefaultSortDirection SortDirection `json:"default_sort_direction" yaml:"default_sort_direction" validate:"oneof=asc desc"`

	// Persistent enables per-user durable settings for this grid.
	Persistent bool `json:"persistent" yaml:"persistent"`
}

// Grid configuration errors.
var (
	ErrInvalidGrid  = errors.New("invalid grid configuration")
	ErrGridNotFound = errors.New("grid not found")
)

// gridValidate checks struct tags on GridConfig and its nested types.
var gridValidate *validator.Validate

func init() {
	gridValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = gridValidate.RegisterValidation("filter_type", validateFilterType)
}

func validateFilterType(fl validator.FieldLevel) bool {
	return slices.Contains(FilterTypes, fl.Field().String())
}

// Validate checks struct tags and the cross-field rules that tags cannot
// express. Every failure wraps ErrInvalidGrid.
func (g GridConfig) Validate() error {
	if err := gridValidate.Struct(g); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidGrid, g.ID, err)
	}

	seen := make(map[string]bool, len(g.Columns))
	displayed := 0
	for _, c := range g.Columns {
		if seen[c.Name] {
			return fmt.Errorf("%w: %s: duplicate column %q", ErrInvalidGrid, g.ID, c.Name)
		}
		seen[c.Name] = true
		if c.Displayed {
			displayed++
		}
	}
	if displayed == 0 {
		return fmt.Errorf("%w: %s: no column is displayed by default", ErrInvalidGrid, g.ID)
	}

	filters := make(map[string]bool, len(g.Filters))
	for _, f := range g.Filters {
		if filters[f.Name] {
			return fmt.Errorf("%w: %s: duplicate filter %q", ErrInvalidGrid, g.ID, f.Name)
		}
		filters[f.Name] = true
	}

	if !slices.Contains(g.PageSizes, g.DefaultPageSize) {
		return fmt.Errorf("%w: %s: default page size %d not in %v", ErrInvalidGrid, g.ID, g.DefaultPageSize, g.PageSizes)
	}
	if !g.IsSortable(g.DefaultSort) {
		return fmt.Errorf("%w: %s: default sort %q is not a sortable column", ErrInvalidGrid, g.ID, g.DefaultSort)
	}
	return nil
}

// Column returns the declared column with the given name.
func (g GridConfig) Column(name string) (Column, bool) {
	for _, c := range g.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether name is a declared column.
func (g GridConfig) HasColumn(name string) bool {
	_, ok := g.Column(name)
	return ok
}

// IsSortable reports whether name is a declared sortable column.
func (g GridConfig) IsSortable(name string) bool {
	c, ok := g.Column(name)
	return ok && c.Sortable
}

// Filter returns the declared filter with the given name.
func (g GridConfig) Filter(name string) (Filter, bool) {
	for _, f := range g.Filters {
		if f.Name == name {
			return f, true
		}
	}
	return Filter{}, false
}

// AllowsPageSize reports whether n is one of the allowed page sizes.
func (g GridConfig) AllowsPageSize(n int) bool {
	return slices.Contains(g.PageSizes, n)
}

// DefaultColumns returns the columns displayed by default, in declaration
// order.
func (g GridConfig) DefaultColumns() []string {
	cols := make([]string, 0, len(g.Columns))
	for _, c := range g.Columns {
		if c.Displayed {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Defaults returns the display state of a first visit with no stored data.
func (g GridConfig) Defaults() DisplayState {
	return DisplayState{
		VisibleColumns: g.DefaultColumns(),
		PageSize:       g.DefaultPageSize,
		SortField:      g.DefaultSort,
		SortDirection:  g.DefaultSortDirection,
		CurrentPage:    1,
		FilterValues:   map[string]any{},
	}
}
