package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and manage persisted per-user grid settings",
	}
	cmd.AddCommand(
		newSettingsGetCmd(a),
		newSettingsListCmd(a),
		newSettingsDeleteCmd(a),
		newSettingsExportCmd(a),
		newSettingsImportCmd(a),
	)
	return cmd
}

func newSettingsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user> <grid>",
		Short: "Show the settings of one user for one grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachSettings()
			if err != nil {
				return err
			}
			defer backend.Detach()

			s, err := backend.GetSettings(cmd.Context(), args[0], args[1])
			if err != nil {
				if errors.Is(err, types.ErrNotFound) {
					return fmt.Errorf("no settings for user %q on grid %q", args[0], args[1])
				}
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), s)
			}
			return printSettingsTable(cmd, []*types.PersistentSettings{s})
		},
	}
}

func newSettingsListCmd(a *app) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored settings, optionally for one user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachSettings()
			if err != nil {
				return err
			}
			defer backend.Detach()

			all, err := backend.ListSettings(cmd.Context(), user)
			if err != nil {
				return err
			}
			if a.jsonMode {
				return printJSON(cmd.OutOrStdout(), all)
			}
			return printSettingsTable(cmd, all)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "only list this user's settings")
	return cmd
}

func newSettingsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user> <grid>",
		Short: "Delete the settings of one user for one grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachSettings()
			if err != nil {
				return err
			}
			defer backend.Detach()

			if err := backend.DeleteSettings(cmd.Context(), args[0], args[1]); err != nil {
				if errors.Is(err, types.ErrNotFound) {
					return fmt.Errorf("no settings for user %q on grid %q", args[0], args[1])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted settings for %s on %s\n", args[0], args[1])
			return nil
		},
	}
}

func newSettingsExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl>",
		Short: "Write every stored setting to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachSettings()
			if err != nil {
				return err
			}
			defer backend.Detach()

			n, err := backend.ExportJSONL(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d settings to %s\n", n, args[0])
			return nil
		},
	}
}

func newSettingsImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Upsert settings from a JSONL file",
		Long:  "Import upserts every valid line of a JSONL export. Malformed lines are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachSettings()
			if err != nil {
				return err
			}
			defer backend.Detach()

			n, err := backend.ImportJSONL(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d settings from %s\n", n, args[0])
			return nil
		},
	}
}

func printSettingsTable(cmd *cobra.Command, all []*types.PersistentSettings) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tGRID\tCOLUMNS\tPAGE SIZE\tSORT\tUPDATED")
	for _, s := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s %s\t%s\n",
			s.UserID, s.GridID, strings.Join(s.VisibleColumns, ","), s.PageSize,
			s.SortField, s.SortDirection, s.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
