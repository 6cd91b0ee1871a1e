package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/crudgrid/internal/catalog"
	"github.com/mesh-intelligence/crudgrid/internal/logging"
	"github.com/mesh-intelligence/crudgrid/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize crudgrid configuration and storage",
		Long: "Create the configuration directory with config.yaml and a sample grids.yaml,\n" +
			"then initialize the settings database and session store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	gridsPath := paths.ResolveFile(a.configDir, a.cfg.GetString(cfgKeyGridsFile))
	if err := writeFileIfMissing(gridsPath, catalog.Sample); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(gridsPath), err)
	}
	if _, err := catalog.Load(gridsPath); err != nil {
		return err
	}

	settings, err := a.attachSettings()
	if err != nil {
		return err
	}
	if err := settings.Detach(); err != nil {
		return fmt.Errorf("finalize settings backend: %w", err)
	}

	sessions, err := a.openSessions(logging.Discard())
	if err != nil {
		return err
	}
	if err := sessions.Close(); err != nil {
		return fmt.Errorf("close session store: %w", err)
	}

	dataDir, err := a.resolveDataDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "crudgrid initialized\nconfig: %s\ndata:   %s\n", a.configDir, dataDir)
	return nil
}
