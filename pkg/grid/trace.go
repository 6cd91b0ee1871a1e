package grid

// Source names the layer that supplied a display state field.
type Source string

// Sources in precedence order, strongest first. SourceReset marks values
// rebuilt from defaults by an explicit reset action.
const (
	SourceRequest   Source = "request"
	SourceSession   Source = "session"
	SourcePersisted Source = "persisted"
	SourceDefault   Source = "default"
	SourceReset     Source = "reset"
)

// Field names used as Trace keys.
const (
	FieldVisibleColumns = "visible_columns"
	FieldPageSize       = "page_size"
	FieldSortField      = "sort_field"
	FieldSortDirection  = "sort_direction"
	FieldCurrentPage    = "current_page"
	FieldFilterValues   = "filter_values"
)

// Trace records which layer supplied each field of a computed state.
type Trace map[string]Source

// Layers counts how many fields each source supplied.
func (t Trace) Layers() map[Source]int {
	out := make(map[Source]int, len(t))
	for _, s := range t {
		out[s]++
	}
	return out
}
