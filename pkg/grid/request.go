package grid

import (
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// Recognized query parameter keys.
const (
	ParamSort          = "sort"
	ParamSortDirection = "sort_direction"
	ParamPage          = "page"
	ParamPageSize      = "page_size"
	ParamReset         = "reset"
	ParamResetSort     = "reset_sort"
	ParamColumns       = "columns"
	ParamColumnPrefix  = "column["
	ParamFilterPrefix  = "filter["
)

// ParseRequest extracts grid parameters from query or form values.
// Column toggles use column[<name>]=show|hide (also 1/0, true/false) and
// filter values use filter[<name>]=value, repeated for multiple-value
// filters; filter[<name>][] is accepted as well and merges with the plain
// form. Keys naming undeclared columns or filters are dropped; every
// other value is passed through untouched for Compute to validate.
func ParseRequest(values url.Values, cfg types.GridConfig) types.RequestParams {
	var p types.RequestParams

	p.Sort = strings.TrimSpace(values.Get(ParamSort))
	p.SortDirection = strings.TrimSpace(values.Get(ParamSortDirection))
	p.Page = strings.TrimSpace(values.Get(ParamPage))
	p.PageSize = strings.TrimSpace(values.Get(ParamPageSize))
	p.Reset = parseFlag(values.Get(ParamReset))
	p.ResetSort = parseFlag(values.Get(ParamResetSort))

	if raw, ok := values[ParamColumns]; ok {
		p.Columns = []string{}
		for _, v := range raw {
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					p.Columns = append(p.Columns, name)
				}
			}
		}
	}

	// Sorted keys put filter[x] ahead of filter[x][], so both forms merge in
	// a fixed order.
	for _, key := range slices.Sorted(maps.Keys(values)) {
		raw := values[key]
		if name, ok := bracketKey(key, ParamColumnPrefix); ok {
			if !cfg.HasColumn(name) || len(raw) == 0 {
				continue
			}
			show, ok := parseToggle(raw[len(raw)-1])
			if !ok {
				continue
			}
			if p.ColumnToggles == nil {
				p.ColumnToggles = map[string]bool{}
			}
			p.ColumnToggles[name] = show
			continue
		}

		if name, ok := bracketKey(key, ParamFilterPrefix); ok {
			f, declared := cfg.Filter(name)
			if !declared {
				continue
			}
			if p.Filters == nil {
				p.Filters = map[string]any{}
			}
			prev, seen := p.Filters[name]
			switch {
			case f.Multiple:
				list, _ := prev.([]string)
				p.Filters[name] = append(slices.Clone(list), raw...)
			case seen:
				// The first key that names a single-value filter wins.
			case len(raw) > 0:
				p.Filters[name] = raw[0]
			default:
				p.Filters[name] = ""
			}
		}
	}

	return p
}

// bracketKey returns the name inside prefix<name>].
func bracketKey(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") {
		return "", false
	}
	name := key[len(prefix) : len(key)-1]
	// PHP-style multi-value keys: filter[role][]
	name = strings.TrimSuffix(name, "][")
	if name == "" {
		return "", false
	}
	return name, true
}

func parseFlag(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func parseToggle(s string) (show, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "show", "on", "yes":
		return true, true
	case "hide", "off", "no":
		return false, true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}
