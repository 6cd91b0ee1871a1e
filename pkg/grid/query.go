package grid

import (
	"maps"
	"math"
	"slices"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// Query describes the data a render needs, independent of any storage
// engine. Callers translate it into their own query language.
type Query struct {
	Columns       []string            `json:"columns"`
	SortField     string              `json:"sort_field"`
	SortDirection types.SortDirection `json:"sort_direction"`
	Filters       map[string]any      `json:"filters"`
	Limit         int                 `json:"limit"`
	Offset        int                 `json:"offset"`
}

// QueryHook adjusts a Query before it is handed to the data layer. A hook
// must not modify state; it returns the query to use.
type QueryHook func(state types.DisplayState, q Query) Query

// BuildQuery derives the Query of state and runs hooks in order.
func BuildQuery(state types.DisplayState, hooks ...QueryHook) Query {
	page := max(state.CurrentPage, 1)
	q := Query{
		Columns:       slices.Clone(state.VisibleColumns),
		SortField:     state.SortField,
		SortDirection: state.SortDirection,
		Filters:       maps.Clone(state.FilterValues),
		Limit:         state.PageSize,
		Offset:        offset(page, state.PageSize),
	}
	if q.Filters == nil {
		q.Filters = map[string]any{}
	}
	for _, h := range hooks {
		if h != nil {
			q = h(state, q)
		}
	}
	return q
}

// offset returns the row offset of page, saturating at math.MaxInt.
func offset(page, size int) int {
	if size <= 0 || page <= 1 {
		return 0
	}
	if page-1 > math.MaxInt/size {
		return math.MaxInt
	}
	return (page - 1) * size
}

// Page describes the position of a render within the full result set.
type Page struct {
	Number  int  `json:"number"`
	Size    int  `json:"size"`
	Count   int  `json:"count"`
	Total   int  `json:"total"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// Paginate clamps the state's current page to the pages available for total
// rows. An empty result set has one (empty) page.
func Paginate(state types.DisplayState, total int) Page {
	size := max(state.PageSize, 1)
	total = max(total, 0)
	count := max((total+size-1)/size, 1)
	number := min(max(state.CurrentPage, 1), count)
	return Page{
		Number:  number,
		Size:    size,
		Count:   count,
		Total:   total,
		HasPrev: number > 1,
		HasNext: number < count,
	}
}
