package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newGridsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grids",
		Short: "List the grids defined in grids.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog()
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), cat.Grids())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPERSISTENT\tPAGE SIZE\tSORT\tCOLUMNS")
			for _, g := range cat.Grids() {
				fmt.Fprintf(w, "%s\t%t\t%d\t%s %s\t%s\n",
					g.ID, g.Persistent, g.DefaultPageSize, g.DefaultSort, g.DefaultSortDirection,
					strings.Join(g.DefaultColumns(), ","))
			}
			return w.Flush()
		},
	}
}
