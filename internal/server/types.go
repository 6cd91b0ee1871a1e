package server

import (
	"github.com/mesh-intelligence/crudgrid/pkg/grid"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error codes.
const (
	CodeGridNotFound     = "GRID_NOT_FOUND"
	CodeSettingsNotFound = "SETTINGS_NOT_FOUND"
	CodeUserRequired     = "USER_REQUIRED"
	CodeNotPersistent    = "GRID_NOT_PERSISTENT"
	CodeStoreFailed      = "STORE_FAILED"
)

// GridsResponse lists the grid catalog.
type GridsResponse struct {
	Grids []types.GridConfig `json:"grids"`
}

// StateResponse is the result of one grid render.
type StateResponse struct {
	Grid      string             `json:"grid"`
	State     types.DisplayState `json:"state"`
	Query     grid.Query         `json:"query"`
	Persisted bool               `json:"persisted"`
	Trace     grid.Trace         `json:"trace"`

	// Page is set when the caller passed a total row count.
	Page *grid.Page `json:"page,omitempty"`
}

// SettingsResponse wraps one user's stored settings.
type SettingsResponse struct {
	Settings *types.PersistentSettings `json:"settings"`
}

// SessionResponse lists the grids with state in one browser session.
type SessionResponse struct {
	Session string   `json:"session"`
	Grids   []string `json:"grids"`
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Grids  int    `json:"grids"`
}
