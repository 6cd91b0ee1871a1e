package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

func TestBuildQuery(t *testing.T) {
	state := types.DisplayState{
		VisibleColumns: []string{"firstName", "lastName"},
		PageSize:       10,
		SortField:      "lastName",
		SortDirection:  types.SortDescending,
		CurrentPage:    3,
		FilterValues:   map[string]any{"name": "ann"},
	}

	q := BuildQuery(state)
	assert.Equal(t, Query{
		Columns:       []string{"firstName", "lastName"},
		SortField:     "lastName",
		SortDirection: types.SortDescending,
		Filters:       map[string]any{"name": "ann"},
		Limit:         10,
		Offset:        20,
	}, q)

	q.Filters["role"] = "x"
	assert.NotContains(t, state.FilterValues, "role")
}

func TestBuildQueryHooksRunInOrder(t *testing.T) {
	state := types.DisplayState{PageSize: 5, CurrentPage: 1, SortField: "a", SortDirection: types.SortAscending}

	scope := func(_ types.DisplayState, q Query) Query {
		q.Filters["tenant"] = "acme"
		return q
	}
	capLimit := func(_ types.DisplayState, q Query) Query {
		q.Limit = min(q.Limit, 2)
		return q
	}

	q := BuildQuery(state, scope, nil, capLimit)
	assert.Equal(t, map[string]any{"tenant": "acme"}, q.Filters)
	assert.Equal(t, 2, q.Limit)
	assert.Equal(t, 0, q.Offset)
}

func TestBuildQueryOffsetSaturates(t *testing.T) {
	tests := []struct {
		name string
		page int
		size int
		want int
	}{
		{"first page", 1, 100, 0},
		{"zero page", 0, 100, 0},
		{"zero size", 5, 0, 0},
		{"max page", MaxPage, 100, (MaxPage - 1) * 100},
		{"overflow", 1000000000000000000, 100, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := BuildQuery(types.DisplayState{CurrentPage: tt.page, PageSize: tt.size})
			assert.Equal(t, tt.want, q.Offset)
			assert.GreaterOrEqual(t, q.Offset, 0)
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		size  int
		total int
		want  Page
	}{
		{"empty result", 1, 10, 0, Page{Number: 1, Size: 10, Count: 1, Total: 0}},
		{"middle page", 2, 10, 35, Page{Number: 2, Size: 10, Count: 4, Total: 35, HasPrev: true, HasNext: true}},
		{"last page exact", 3, 5, 15, Page{Number: 3, Size: 5, Count: 3, Total: 15, HasPrev: true}},
		{"page beyond end clamps", 9, 5, 12, Page{Number: 3, Size: 5, Count: 3, Total: 12, HasPrev: true}},
		{"zero page clamps to first", 0, 5, 12, Page{Number: 1, Size: 5, Count: 3, Total: 12, HasNext: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Paginate(types.DisplayState{CurrentPage: tt.page, PageSize: tt.size}, tt.total)
			assert.Equal(t, tt.want, got)
		})
	}
}
