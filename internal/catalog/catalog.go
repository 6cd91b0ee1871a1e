// Package catalog loads the static grid definitions from grids.yaml.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// FileName is the default catalog file in the config directory.
const FileName = "grids.yaml"

// document is the on-disk layout of grids.yaml.
type document struct {
	Grids []types.GridConfig `yaml:"grids"`
}

// Catalog is a read-only set of grid definitions keyed by ID.
type Catalog struct {
	grids map[string]types.GridConfig
}

// New builds a catalog from grids. Each grid is normalized and validated;
// duplicate IDs are rejected.
func New(grids ...types.GridConfig) (*Catalog, error) {
	c := &Catalog{grids: make(map[string]types.GridConfig, len(grids))}
	for _, g := range grids {
		if g.DefaultSortDirection == "" {
			g.DefaultSortDirection = types.SortAscending
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.grids[g.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate grid id %q", types.ErrInvalidGrid, g.ID)
		}
		c.grids[g.ID] = g
	}
	return c, nil
}

// Parse decodes a grids.yaml document. Unknown keys are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidGrid, err)
	}
	return New(doc.Grids...)
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading grid catalog: %w", err)
	}
	c, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return c, nil
}

// Get returns the grid with the given ID, or ErrGridNotFound.
func (c *Catalog) Get(id string) (types.GridConfig, error) {
	g, ok := c.grids[id]
	if !ok {
		return types.GridConfig{}, fmt.Errorf("%w: %s", types.ErrGridNotFound, id)
	}
	return g, nil
}

// IDs returns the grid IDs in lexical order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.grids))
	for id := range c.grids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Grids returns every grid ordered by ID.
func (c *Catalog) Grids() []types.GridConfig {
	ids := c.IDs()
	out := make([]types.GridConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.grids[id])
	}
	return out
}

// Len returns the number of grids.
func (c *Catalog) Len() int {
	return len(c.grids)
}

// Sample is the grids.yaml written by `crudgrid init`.
const Sample = `# Grid definitions for crudgrid.
grids:
  - id: users
    persistent: true
    page_sizes: [10, 25, 50, 100]
    default_page_size: 25
    default_sort: lastName
    default_sort_direction: asc
    columns:
      - {name: username, label: Username, sortable: true, displayed: true}
      - {name: firstName, label: First name, sortable: true, displayed: true}
      - {name: lastName, label: Last name, sortable: true, displayed: true}
      - {name: email, label: Email, sortable: false, displayed: false}
      - {name: createdAt, label: Created, sortable: true, displayed: false}
    filters:
      - {name: status, label: Status, type: choice}
      - {name: roles, label: Roles, type: choice, multiple: true}
      - {name: search, label: Search, type: text}
  - id: audit_log
    persistent: false
    page_sizes: [50, 100]
    default_page_size: 50
    default_sort: occurredAt
    default_sort_direction: desc
    columns:
      - {name: occurredAt, label: When, sortable: true, displayed: true}
      - {name: actor, label: Actor, sortable: true, displayed: true}
      - {name: action, label: Action, sortable: false, displayed: true}
    filters:
      - {name: actor, label: Actor, type: text}
`
