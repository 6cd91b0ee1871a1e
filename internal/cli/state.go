package cli

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudgrid/internal/logging"
	"github.com/mesh-intelligence/crudgrid/pkg/grid"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// stateOutput is the result of the state command.
type stateOutput struct {
	Session   string             `json:"session"`
	State     types.DisplayState `json:"state"`
	Query     grid.Query         `json:"query"`
	Persisted bool               `json:"persisted"`
	Trace     grid.Trace         `json:"trace"`
}

func newStateCmd(a *app) *cobra.Command {
	var user, sessionID string

	cmd := &cobra.Command{
		Use:   "state <grid> [key=value ...]",
		Short: "Reconcile one render of a grid",
		Long: `State runs one render of a grid against the stored session and user
settings and writes the result back, as the HTTP API does.

Parameters use the query string names, for example:
  crudgrid state users sort=username sort_direction=desc --user u1
  crudgrid state users page=3 'filter[status]=active' --session <id>
  crudgrid state users reset=1 --user u1 --session <id>

Without --session a new session is started and its ID is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runState(cmd, args[0], args[1:], user, sessionID)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID; empty renders anonymously")
	cmd.Flags().StringVar(&sessionID, "session", "", "session ID to continue")
	return cmd
}

func (a *app) runState(cmd *cobra.Command, gridID string, pairs []string, user, sessionID string) error {
	cat, err := a.loadCatalog()
	if err != nil {
		return err
	}
	cfg, err := cat.Get(gridID)
	if err != nil {
		return err
	}

	values, err := parsePairs(pairs)
	if err != nil {
		return err
	}

	if sessionID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("new session id: %w", err)
		}
		sessionID = id.String()
	}

	logger := a.logger("cli")
	sessions, err := a.openSessions(logging.Discard())
	if err != nil {
		return err
	}
	defer sessions.Close()

	settings, err := a.attachSettings()
	if err != nil {
		return err
	}
	defer settings.Detach()

	out, err := grid.NewReconciler(sessions, settings, grid.WithLogger(logger)).
		Reconcile(cmd.Context(), grid.Request{
			Grid:      cfg,
			SessionID: sessionID,
			UserID:    user,
			Params:    grid.ParseRequest(values, cfg),
		})
	if err != nil {
		return err
	}

	result := stateOutput{
		Session:   sessionID,
		State:     out.State,
		Query:     grid.BuildQuery(out.State),
		Persisted: out.Persist,
		Trace:     out.Trace,
	}
	if a.jsonMode {
		return printJSON(cmd.OutOrStdout(), result)
	}
	printState(cmd, result)
	return nil
}

// parsePairs turns key=value arguments into query values. Repeated keys
// accumulate.
func parsePairs(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", p)
		}
		values.Add(key, value)
	}
	return values, nil
}

func printState(cmd *cobra.Command, r stateOutput) {
	w := cmd.OutOrStdout()
	s := r.State
	fmt.Fprintf(w, "session:   %s\n", r.Session)
	fmt.Fprintf(w, "columns:   %s (%s)\n", strings.Join(s.VisibleColumns, ","), r.Trace[grid.FieldVisibleColumns])
	fmt.Fprintf(w, "page size: %d (%s)\n", s.PageSize, r.Trace[grid.FieldPageSize])
	fmt.Fprintf(w, "sort:      %s %s (%s, %s)\n", s.SortField, s.SortDirection, r.Trace[grid.FieldSortField], r.Trace[grid.FieldSortDirection])
	fmt.Fprintf(w, "page:      %d (%s)\n", s.CurrentPage, r.Trace[grid.FieldCurrentPage])

	names := make([]string, 0, len(s.FilterValues))
	for name := range s.FilterValues {
		names = append(names, name)
	}
	sort.Strings(names)
	filters := make([]string, 0, len(names))
	for _, name := range names {
		filters = append(filters, fmt.Sprintf("%s=%v", name, s.FilterValues[name]))
	}
	fmt.Fprintf(w, "filters:   %s (%s)\n", strings.Join(filters, " "), r.Trace[grid.FieldFilterValues])
	fmt.Fprintf(w, "persisted: %t\n", r.Persisted)
}
