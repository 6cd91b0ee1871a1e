package grid

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// usersGrid is the grid used by the scenarios below: username is declared
// but hidden by default and not sortable.
func usersGrid() types.GridConfig {
	return types.GridConfig{
		ID: "users",
		Columns: []types.Column{
			{Name: "username", Sortable: false, Displayed: false},
			{Name: "firstName", Sortable: true, Displayed: true},
			{Name: "lastName", Sortable: true, Displayed: true},
		},
		Filters: []types.Filter{
			{Name: "name", Type: types.FilterTypeText},
			{Name: "role", Type: types.FilterTypeChoice, Multiple: true},
		},
		PageSizes:            []int{5, 10, 50},
		DefaultPageSize:      5,
		DefaultSort:          "firstName",
		DefaultSortDirection: types.SortAscending,
		Persistent:           true,
	}
}

func savedRecord() *types.PersistentSettings {
	return &types.PersistentSettings{
		SettingsID: "0190a1b2-0000-7000-8000-000000000001",
		UserID:     "u1",
		GridID:     "users",
		DurableSettings: types.DurableSettings{
			VisibleColumns: []string{"username", "firstName"},
			PageSize:       50,
			SortField:      "lastName",
			SortDirection:  types.SortDescending,
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestComputeDefaultsOnFirstVisit(t *testing.T) {
	cfg := usersGrid()
	out := Compute(cfg, nil, nil, types.RequestParams{})

	assert.Equal(t, cfg.Defaults(), out.State)
	assert.Equal(t, types.DisplayState{
		VisibleColumns: []string{"firstName", "lastName"},
		PageSize:       5,
		SortField:      "firstName",
		SortDirection:  types.SortAscending,
		CurrentPage:    1,
		FilterValues:   map[string]any{},
	}, out.State)
	for _, src := range out.Trace {
		assert.Equal(t, SourceDefault, src)
	}
	// No record yet on a persistent grid: the first render creates one.
	assert.True(t, out.Persist)
}

func TestComputeNonPersistentGridNeverPersists(t *testing.T) {
	cfg := usersGrid()
	cfg.Persistent = false

	out := Compute(cfg, nil, savedRecord(), types.RequestParams{SortDirection: "desc"})
	assert.False(t, out.Persist)
	// The record is ignored as a source too.
	assert.Equal(t, "firstName", out.State.SortField)
	assert.Equal(t, 5, out.State.PageSize)
}

func TestComputePersistedRecordWinsWithoutSession(t *testing.T) {
	out := Compute(usersGrid(), nil, savedRecord(), types.RequestParams{})

	assert.Equal(t, types.DisplayState{
		VisibleColumns: []string{"username", "firstName"},
		PageSize:       50,
		SortField:      "lastName",
		SortDirection:  types.SortDescending,
		CurrentPage:    1,
		FilterValues:   map[string]any{},
	}, out.State)
	assert.False(t, out.Persist)
	assert.Equal(t, SourcePersisted, out.Trace[FieldSortField])
	assert.Equal(t, SourcePersisted, out.Trace[FieldVisibleColumns])
	assert.Equal(t, SourceDefault, out.Trace[FieldCurrentPage])
}

func TestComputeUnsortableRequestSortIgnoredEntirely(t *testing.T) {
	req := types.RequestParams{Sort: "username", SortDirection: "asc"}
	out := Compute(usersGrid(), nil, savedRecord(), req)

	assert.Equal(t, "lastName", out.State.SortField)
	assert.Equal(t, types.SortDescending, out.State.SortDirection)
	assert.Equal(t, SourcePersisted, out.Trace[FieldSortDirection])
	assert.False(t, out.Persist)
}

func TestComputeInvalidSortDirection(t *testing.T) {
	cfg := usersGrid()
	session := cfg.Defaults()
	session.SortDirection = types.SortDescending

	tests := []struct {
		name    string
		session *types.DisplayState
		want    types.SortDirection
	}{
		{name: "falls back to session", session: &session, want: types.SortDescending},
		{name: "falls back to default", session: nil, want: types.SortAscending},
	}

	for _, tt := range tests {
		for _, bad := range []string{"sideways", "1", "ASCX", " "} {
			t.Run(tt.name+"/"+bad, func(t *testing.T) {
				out := Compute(cfg, tt.session, nil, types.RequestParams{SortDirection: bad})
				assert.Equal(t, tt.want, out.State.SortDirection)
			})
		}
	}
}

func TestComputeRequestOverridesSession(t *testing.T) {
	cfg := usersGrid()
	session := &types.DisplayState{
		VisibleColumns: []string{"lastName"},
		PageSize:       10,
		SortField:      "firstName",
		SortDirection:  types.SortAscending,
		CurrentPage:    3,
		FilterValues:   map[string]any{"name": "ann"},
	}

	req := types.RequestParams{Sort: "lastName", SortDirection: "DESC", PageSize: "50"}
	out := Compute(cfg, session, nil, req)

	assert.Equal(t, "lastName", out.State.SortField)
	assert.Equal(t, types.SortDescending, out.State.SortDirection)
	assert.Equal(t, 50, out.State.PageSize)
	assert.Equal(t, []string{"lastName"}, out.State.VisibleColumns)
	assert.Equal(t, map[string]any{"name": "ann"}, out.State.FilterValues)
	// Sort and page size changed, so the page restarts.
	assert.Equal(t, 1, out.State.CurrentPage)
	assert.Equal(t, SourceRequest, out.Trace[FieldSortField])
	assert.Equal(t, SourceSession, out.Trace[FieldVisibleColumns])
}

func TestComputeInvalidRequestValuesFallThrough(t *testing.T) {
	cfg := usersGrid()
	session := &types.DisplayState{
		VisibleColumns: []string{"lastName", "firstName"},
		PageSize:       10,
		SortField:      "lastName",
		SortDirection:  types.SortDescending,
		CurrentPage:    2,
		FilterValues:   map[string]any{},
	}

	req := types.RequestParams{
		Sort:     "email",
		PageSize: "25",
		Page:     "-4",
		Columns:  []string{"email", "phone"},
	}
	out := Compute(cfg, session, nil, req)

	assert.Equal(t, "lastName", out.State.SortField)
	assert.Equal(t, types.SortDescending, out.State.SortDirection)
	assert.Equal(t, 10, out.State.PageSize)
	assert.Equal(t, []string{"lastName", "firstName"}, out.State.VisibleColumns)
	assert.Equal(t, 2, out.State.CurrentPage)
}

func TestComputeMalformedPageSize(t *testing.T) {
	cfg := usersGrid()
	for _, v := range []string{"abc", "0", "-5", "5.5", "1e3"} {
		t.Run(v, func(t *testing.T) {
			out := Compute(cfg, nil, nil, types.RequestParams{PageSize: v, Page: v})
			assert.Equal(t, 5, out.State.PageSize)
			assert.Equal(t, 1, out.State.CurrentPage)
		})
	}
}

func TestComputeSessionIgnoresPersistedRecord(t *testing.T) {
	cfg := usersGrid()
	session := cfg.Defaults()
	session.CurrentPage = 4

	out := Compute(cfg, &session, savedRecord(), types.RequestParams{})

	assert.Equal(t, "firstName", out.State.SortField)
	assert.Equal(t, 5, out.State.PageSize)
	assert.Equal(t, 4, out.State.CurrentPage)
	// The session differs from the stored record, so the record follows it.
	assert.True(t, out.Persist)
}

func TestComputeStaleSessionValuesFallToDefaults(t *testing.T) {
	cfg := usersGrid()
	// Session written under an older grid definition.
	session := &types.DisplayState{
		VisibleColumns: []string{"email"},
		PageSize:       25,
		SortField:      "username",
		SortDirection:  "up",
		CurrentPage:    7,
		FilterValues:   map[string]any{"status": "open"},
	}

	out := Compute(cfg, session, savedRecord(), types.RequestParams{})

	assert.Equal(t, []string{"firstName", "lastName"}, out.State.VisibleColumns)
	assert.Equal(t, 5, out.State.PageSize)
	assert.Equal(t, "firstName", out.State.SortField)
	assert.Equal(t, types.SortAscending, out.State.SortDirection)
	assert.Empty(t, out.State.FilterValues)
	assert.Equal(t, 1, out.State.CurrentPage)
}

func TestComputeStaleSortFieldTakesDefaultDirection(t *testing.T) {
	cfg := usersGrid()
	session := cfg.Defaults()
	session.SortField = "username"
	session.SortDirection = types.SortDescending

	out := Compute(cfg, &session, nil, types.RequestParams{})
	assert.Equal(t, "firstName", out.State.SortField)
	assert.Equal(t, types.SortAscending, out.State.SortDirection)
	assert.Equal(t, SourceDefault, out.Trace[FieldSortField])
	assert.Equal(t, SourceDefault, out.Trace[FieldSortDirection])

	// An explicit direction still applies to the default field.
	out = Compute(cfg, &session, nil, types.RequestParams{SortDirection: "desc"})
	assert.Equal(t, "firstName", out.State.SortField)
	assert.Equal(t, types.SortDescending, out.State.SortDirection)
	assert.Equal(t, SourceRequest, out.Trace[FieldSortDirection])
}

func TestComputePageAboveMaxFallsThrough(t *testing.T) {
	cfg := usersGrid()
	session := cfg.Defaults()
	session.CurrentPage = 4

	tests := []struct {
		name    string
		session *types.DisplayState
		page    string
		want    int
		source  Source
	}{
		{"at max", nil, strconv.Itoa(MaxPage), MaxPage, SourceRequest},
		{"above max without session", nil, strconv.Itoa(MaxPage + 1), 1, SourceDefault},
		{"huge keeps session page", &session, "1000000000000000000", 4, SourceSession},
		{"overflowing int", nil, "99999999999999999999999", 1, SourceDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Compute(cfg, tt.session, nil, types.RequestParams{Page: tt.page})
			assert.Equal(t, tt.want, out.State.CurrentPage)
			assert.Equal(t, tt.source, out.Trace[FieldCurrentPage])
		})
	}

	stale := cfg.Defaults()
	stale.CurrentPage = MaxPage + 1
	out := Compute(cfg, &stale, nil, types.RequestParams{})
	assert.Equal(t, 1, out.State.CurrentPage)
}

func TestComputeFullReset(t *testing.T) {
	cfg := usersGrid()
	session := &types.DisplayState{
		VisibleColumns: []string{"username"},
		PageSize:       50,
		SortField:      "lastName",
		SortDirection:  types.SortDescending,
		CurrentPage:    9,
		FilterValues:   map[string]any{"name": "bob", "role": []string{"admin"}},
	}

	tests := []struct {
		name    string
		session *types.DisplayState
		record  *types.PersistentSettings
		req     types.RequestParams
	}{
		{name: "session and record", session: session, record: savedRecord(), req: types.RequestParams{Reset: true}},
		{name: "record only", record: savedRecord(), req: types.RequestParams{Reset: true}},
		{
			name:    "reset beats request values",
			session: session,
			req: types.RequestParams{
				Reset: true, Sort: "lastName", PageSize: "10", Page: "3",
				Filters: map[string]any{"name": "zed"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Compute(cfg, tt.session, tt.record, tt.req)
			assert.Equal(t, cfg.Defaults(), out.State)
			assert.Empty(t, out.State.FilterValues)
			for _, src := range out.Trace {
				assert.Equal(t, SourceReset, src)
			}
		})
	}
}

func TestComputeSortReset(t *testing.T) {
	cfg := usersGrid()
	session := &types.DisplayState{
		VisibleColumns: []string{"username", "lastName"},
		PageSize:       10,
		SortField:      "lastName",
		SortDirection:  types.SortDescending,
		CurrentPage:    3,
		FilterValues:   map[string]any{"name": "bob"},
	}

	out := Compute(cfg, session, nil, types.RequestParams{ResetSort: true, Sort: "lastName"})

	assert.Equal(t, "firstName", out.State.SortField)
	assert.Equal(t, types.SortAscending, out.State.SortDirection)
	assert.Equal(t, []string{"username", "lastName"}, out.State.VisibleColumns)
	assert.Equal(t, 10, out.State.PageSize)
	assert.Equal(t, map[string]any{"name": "bob"}, out.State.FilterValues)
	assert.Equal(t, SourceReset, out.Trace[FieldSortField])
}

func TestComputeIdempotent(t *testing.T) {
	cfg := usersGrid()
	requests := []types.RequestParams{
		{},
		{Sort: "lastName", SortDirection: "desc"},
		{PageSize: "10", Page: "4"},
		{Columns: []string{"lastName", "username"}},
		{ColumnToggles: map[string]bool{"username": true}},
		{Filters: map[string]any{"role": []string{"admin", "dev"}, "name": "x"}},
		{Reset: true},
		{ResetSort: true},
	}

	for _, record := range []*types.PersistentSettings{nil, savedRecord()} {
		for _, req := range requests {
			first := Compute(cfg, nil, record, req)
			session := first.State.Clone()
			second := Compute(cfg, &session, record, types.RequestParams{})
			assert.Equal(t, first.State, second.State, "request %+v", req)
		}
	}
}

func TestComputePersistTrigger(t *testing.T) {
	cfg := usersGrid()
	record := savedRecord()
	session := &types.DisplayState{
		VisibleColumns: record.VisibleColumns,
		PageSize:       record.PageSize,
		SortField:      record.SortField,
		SortDirection:  record.SortDirection,
		CurrentPage:    1,
		FilterValues:   map[string]any{},
	}

	tests := []struct {
		name string
		req  types.RequestParams
		want bool
	}{
		{"page change only", types.RequestParams{Page: "3"}, false},
		{"filter change only", types.RequestParams{Filters: map[string]any{"name": "a"}}, false},
		{"sort direction change", types.RequestParams{SortDirection: "asc"}, true},
		{"same direction again", types.RequestParams{SortDirection: "desc"}, false},
		{"page size change", types.RequestParams{PageSize: "10"}, true},
		{"column toggle", types.RequestParams{ColumnToggles: map[string]bool{"lastName": true}}, true},
		{"column reorder", types.RequestParams{Columns: []string{"firstName", "username"}}, true},
		{"invalid values only", types.RequestParams{Sort: "nope", PageSize: "7"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Compute(cfg, session, record, tt.req)
			assert.Equal(t, tt.want, out.Persist)
			if tt.want {
				assert.Equal(t, out.State.Durable(), out.Settings)
			}
		})
	}
}

func TestComputeColumns(t *testing.T) {
	cfg := usersGrid()
	session := cfg.Defaults()

	tests := []struct {
		name string
		req  types.RequestParams
		want []string
		src  Source
	}{
		{
			name: "replacement drops unknown and duplicate names",
			req:  types.RequestParams{Columns: []string{"lastName", "email", "lastName", "username"}},
			want: []string{"lastName", "username"},
			src:  SourceRequest,
		},
		{
			name: "empty replacement falls through",
			req:  types.RequestParams{Columns: []string{}},
			want: []string{"firstName", "lastName"},
			src:  SourceSession,
		},
		{
			name: "show appends",
			req:  types.RequestParams{ColumnToggles: map[string]bool{"username": true}},
			want: []string{"firstName", "lastName", "username"},
			src:  SourceRequest,
		},
		{
			name: "hide removes",
			req:  types.RequestParams{ColumnToggles: map[string]bool{"firstName": false}},
			want: []string{"lastName"},
			src:  SourceRequest,
		},
		{
			name: "hiding every column is ignored",
			req:  types.RequestParams{ColumnToggles: map[string]bool{"firstName": false, "lastName": false}},
			want: []string{"firstName", "lastName"},
			src:  SourceSession,
		},
		{
			name: "toggles apply on top of replacement",
			req: types.RequestParams{
				Columns:       []string{"lastName"},
				ColumnToggles: map[string]bool{"username": true, "firstName": true},
			},
			want: []string{"lastName", "username", "firstName"},
			src:  SourceRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Compute(cfg, &session, nil, tt.req)
			assert.Equal(t, tt.want, out.State.VisibleColumns)
			assert.Equal(t, tt.src, out.Trace[FieldVisibleColumns])
		})
	}
}

func TestComputeFilters(t *testing.T) {
	cfg := usersGrid()
	session := cfg.Defaults()
	session.FilterValues = map[string]any{"name": "ann", "role": []any{"admin"}}
	session.CurrentPage = 3

	t.Run("session filters survive empty request", func(t *testing.T) {
		out := Compute(cfg, &session, nil, types.RequestParams{})
		assert.Equal(t, map[string]any{"name": "ann", "role": []string{"admin"}}, out.State.FilterValues)
		assert.Equal(t, 3, out.State.CurrentPage)
	})

	t.Run("request merges by name and restarts paging", func(t *testing.T) {
		out := Compute(cfg, &session, nil, types.RequestParams{
			Filters: map[string]any{"role": []string{"dev", "", "ops"}, "status": "open"},
		})
		assert.Equal(t, map[string]any{"name": "ann", "role": []string{"dev", "ops"}}, out.State.FilterValues)
		assert.Equal(t, 1, out.State.CurrentPage)
		assert.Equal(t, SourceRequest, out.Trace[FieldFilterValues])
	})

	t.Run("empty value clears a filter", func(t *testing.T) {
		out := Compute(cfg, &session, nil, types.RequestParams{Filters: map[string]any{"name": ""}})
		assert.Equal(t, map[string]any{"role": []string{"admin"}}, out.State.FilterValues)
	})

	t.Run("explicit page is kept with new filters", func(t *testing.T) {
		out := Compute(cfg, &session, nil, types.RequestParams{
			Filters: map[string]any{"name": "bo"},
			Page:    "2",
		})
		assert.Equal(t, 2, out.State.CurrentPage)
	})

	t.Run("single value filter takes first list element", func(t *testing.T) {
		out := Compute(cfg, nil, nil, types.RequestParams{Filters: map[string]any{"name": []string{"", "x", "y"}}})
		assert.Equal(t, map[string]any{"name": "x"}, out.State.FilterValues)
	})

	t.Run("filters never come from the record", func(t *testing.T) {
		out := Compute(cfg, nil, savedRecord(), types.RequestParams{})
		require.NotNil(t, out.State.FilterValues)
		assert.Empty(t, out.State.FilterValues)
	})
}

func TestTraceLayers(t *testing.T) {
	out := Compute(usersGrid(), nil, nil, types.RequestParams{Sort: "lastName"})
	layers := out.Trace.Layers()
	assert.Equal(t, 1, layers[SourceRequest])
	assert.Equal(t, 5, layers[SourceDefault])
}
