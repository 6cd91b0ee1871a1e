// Package grid computes the effective display state of a grid render from
// request parameters, session state and per-user persisted settings, and
// writes the result back through the SessionStore and SettingsStore.
//
// Precedence, per field:
//
//	reset action > request > session > persisted settings > grid defaults
//
// Persisted settings are consulted only on the first render of a session and
// never supply the current page or filter values. Invalid values at any layer
// fall through to the next one; Compute never fails.
package grid

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// MaxPage is the largest page number accepted from a request or session.
// Larger values fall through to the next layer.
const MaxPage = 1 << 30

// Outcome is the result of one reconciliation.
type Outcome struct {
	// State is the effective display state of the render.
	State types.DisplayState `json:"state"`

	// Persist is true when the durable fields must be written to the
	// settings store.
	Persist bool `json:"persist"`

	// Settings holds the durable fields of State.
	Settings types.DurableSettings `json:"settings"`

	// Trace records the source of every field.
	Trace Trace `json:"trace"`
}

// Compute returns the effective display state for one render of cfg.
// session is nil on the first render of a browser session; record is nil
// when the user never saved settings for the grid or persistence is off.
// Compute has no side effects; Reconciler performs the write-back.
func Compute(cfg types.GridConfig, session *types.DisplayState, record *types.PersistentSettings, req types.RequestParams) Outcome {
	trace := Trace{}

	if req.Reset {
		state := cfg.Defaults()
		for _, f := range []string{FieldVisibleColumns, FieldPageSize, FieldSortField, FieldSortDirection, FieldCurrentPage, FieldFilterValues} {
			trace[f] = SourceReset
		}
		return finish(cfg, state, record, trace)
	}

	// Persisted settings seed only the first render of a session.
	var persisted *types.DurableSettings
	if cfg.Persistent && session == nil && record != nil {
		persisted = &record.DurableSettings
	}

	var state types.DisplayState

	if req.ResetSort {
		state.SortField = cfg.DefaultSort
		state.SortDirection = cfg.DefaultSortDirection
		trace[FieldSortField] = SourceReset
		trace[FieldSortDirection] = SourceReset
	} else {
		state.SortField, trace[FieldSortField] = resolveSortField(cfg, req, session, persisted)
		state.SortDirection, trace[FieldSortDirection] = resolveSortDirection(cfg, req, session, persisted, trace[FieldSortField])
	}

	state.PageSize, trace[FieldPageSize] = resolvePageSize(cfg, req, session, persisted)
	state.VisibleColumns, trace[FieldVisibleColumns] = resolveColumns(cfg, req, session, persisted)
	state.FilterValues, trace[FieldFilterValues] = resolveFilters(cfg, req, session)
	state.CurrentPage, trace[FieldCurrentPage] = resolvePage(cfg, req, session, state)

	return finish(cfg, state, record, trace)
}

// finish decides the persistence trigger.
func finish(cfg types.GridConfig, state types.DisplayState, record *types.PersistentSettings, trace Trace) Outcome {
	durable := state.Durable()
	persist := cfg.Persistent && (record == nil || !record.DurableSettings.Equal(durable))
	return Outcome{
		State:    state,
		Persist:  persist,
		Settings: durable,
		Trace:    trace,
	}
}

func resolveSortField(cfg types.GridConfig, req types.RequestParams, session *types.DisplayState, persisted *types.DurableSettings) (string, Source) {
	if req.Sort != "" && cfg.IsSortable(req.Sort) {
		return req.Sort, SourceRequest
	}
	if session != nil && cfg.IsSortable(session.SortField) {
		return session.SortField, SourceSession
	}
	if persisted != nil && cfg.IsSortable(persisted.SortField) {
		return persisted.SortField, SourcePersisted
	}
	return cfg.DefaultSort, SourceDefault
}

// resolveSortDirection drops the requested direction when the same request
// names a rejected sort field. Otherwise the direction never comes from a
// layer above the one that supplied the sort field.
func resolveSortDirection(cfg types.GridConfig, req types.RequestParams, session *types.DisplayState, persisted *types.DurableSettings, field Source) (types.SortDirection, Source) {
	sortRejected := req.Sort != "" && !cfg.IsSortable(req.Sort)
	if d, ok := types.ParseSortDirection(req.SortDirection); ok && !sortRejected {
		return d, SourceRequest
	}
	if session != nil && session.SortDirection.Valid() && (field == SourceRequest || field == SourceSession) {
		return session.SortDirection, SourceSession
	}
	if persisted != nil && persisted.SortDirection.Valid() && field != SourceDefault {
		return persisted.SortDirection, SourcePersisted
	}
	return cfg.DefaultSortDirection, SourceDefault
}

func resolvePageSize(cfg types.GridConfig, req types.RequestParams, session *types.DisplayState, persisted *types.DurableSettings) (int, Source) {
	if n, ok := parsePositive(req.PageSize); ok && cfg.AllowsPageSize(n) {
		return n, SourceRequest
	}
	if session != nil && cfg.AllowsPageSize(session.PageSize) {
		return session.PageSize, SourceSession
	}
	if persisted != nil && cfg.AllowsPageSize(persisted.PageSize) {
		return persisted.PageSize, SourcePersisted
	}
	return cfg.DefaultPageSize, SourceDefault
}

func resolveColumns(cfg types.GridConfig, req types.RequestParams, session *types.DisplayState, persisted *types.DurableSettings) ([]string, Source) {
	var (
		cols   []string
		source Source
	)
	switch {
	case len(sanitizeColumns(cfg, req.Columns)) > 0:
		cols, source = sanitizeColumns(cfg, req.Columns), SourceRequest
	case session != nil && len(sanitizeColumns(cfg, session.VisibleColumns)) > 0:
		cols, source = sanitizeColumns(cfg, session.VisibleColumns), SourceSession
	case persisted != nil && len(sanitizeColumns(cfg, persisted.VisibleColumns)) > 0:
		cols, source = sanitizeColumns(cfg, persisted.VisibleColumns), SourcePersisted
	default:
		cols, source = cfg.DefaultColumns(), SourceDefault
	}

	if len(req.ColumnToggles) == 0 {
		return cols, source
	}
	toggled := applyToggles(cfg, cols, req.ColumnToggles)
	if len(toggled) == 0 || slices.Equal(toggled, cols) {
		return cols, source
	}
	return toggled, SourceRequest
}

// sanitizeColumns drops unknown and repeated names, keeping order.
func sanitizeColumns(cfg types.GridConfig, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if cfg.HasColumn(n) && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

// applyToggles hides and shows single columns. Newly shown columns are
// appended in declaration order.
func applyToggles(cfg types.GridConfig, cols []string, toggles map[string]bool) []string {
	out := slices.Clone(cols)
	for _, c := range cfg.Columns {
		show, ok := toggles[c.Name]
		if !ok {
			continue
		}
		i := slices.Index(out, c.Name)
		switch {
		case show && i < 0:
			out = append(out, c.Name)
		case !show && i >= 0:
			out = slices.Delete(out, i, i+1)
		}
	}
	return out
}

func resolveFilters(cfg types.GridConfig, req types.RequestParams, session *types.DisplayState) (map[string]any, Source) {
	values := sessionFilters(cfg, session)
	source := SourceDefault
	if session != nil {
		source = SourceSession
	}

	if req.Filters == nil {
		return values, source
	}
	for name, v := range req.Filters {
		f, ok := cfg.Filter(name)
		if !ok {
			continue
		}
		if nv, ok := normalizeFilterValue(f, v); ok {
			values[name] = nv
		} else {
			delete(values, name)
		}
	}
	return values, SourceRequest
}

// sessionFilters returns the declared, non-empty filter values of session in
// canonical form. The result is never nil.
func sessionFilters(cfg types.GridConfig, session *types.DisplayState) map[string]any {
	values := map[string]any{}
	if session == nil {
		return values
	}
	for name, v := range session.FilterValues {
		f, ok := cfg.Filter(name)
		if !ok {
			continue
		}
		if nv, ok := normalizeFilterValue(f, v); ok {
			values[name] = nv
		}
	}
	return values
}

// normalizeFilterValue converts v to the canonical form stored in state:
// []string for multiple-value filters, a scalar otherwise. ok is false for
// empty values, which clear the filter.
func normalizeFilterValue(f types.Filter, v any) (any, bool) {
	var list []string
	switch t := v.(type) {
	case nil:
		return nil, false
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		if !f.Multiple {
			return t, true
		}
		list = []string{t}
	case []string:
		list = t
	case []any:
		for _, e := range t {
			if e != nil {
				list = append(list, fmt.Sprint(e))
			}
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Map {
			return nil, false
		}
		if f.Multiple {
			return []string{fmt.Sprint(v)}, true
		}
		return v, true
	}

	list = slices.DeleteFunc(slices.Clone(list), func(s string) bool { return strings.TrimSpace(s) == "" })
	if len(list) == 0 {
		return nil, false
	}
	if f.Multiple {
		return list, true
	}
	return list[0], true
}

// resolvePage keeps the session page unless the request names one, or
// changes what the pages contain, in which case it restarts at page 1.
func resolvePage(cfg types.GridConfig, req types.RequestParams, session *types.DisplayState, state types.DisplayState) (int, Source) {
	if n, ok := parsePositive(req.Page); ok && n <= MaxPage {
		return n, SourceRequest
	}
	if session == nil || session.CurrentPage < 1 || session.CurrentPage > MaxPage {
		return 1, SourceDefault
	}
	if session.SortField != state.SortField ||
		session.SortDirection != state.SortDirection ||
		session.PageSize != state.PageSize ||
		!reflect.DeepEqual(sessionFilters(cfg, session), state.FilterValues) {
		return 1, SourceDefault
	}
	return session.CurrentPage, SourceSession
}

// parsePositive parses s as a positive base-10 integer.
func parsePositive(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
