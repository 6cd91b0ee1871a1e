// Package cli implements the crudgrid command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/crudgrid/internal/catalog"
	"github.com/mesh-intelligence/crudgrid/internal/logging"
	"github.com/mesh-intelligence/crudgrid/internal/paths"
	"github.com/mesh-intelligence/crudgrid/internal/session"
	"github.com/mesh-intelligence/crudgrid/internal/sqlite"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
)

// app holds global flag values and the loaded configuration shared by all
// subcommands of one invocation.
type app struct {
	configDir string
	dataDir   string
	jsonMode  bool

	cfg *viper.Viper
}

// NewRootCmd creates the top-level "crudgrid" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "crudgrid",
		Short: "Grid display settings with session and per-user persistence",
		Long: "crudgrid reconciles data grid display state (columns, page size, sort,\n" +
			"page and filters) from the request, the browser session, the user's\n" +
			"saved settings and the grid defaults.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			configDir, err := paths.ResolveConfigDir(a.configDir)
			if err != nil {
				return fmt.Errorf("resolve config dir: %w", err)
			}
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			a.configDir = configDir
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/crudgrid)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/.crudgrid-db)")
	root.PersistentFlags().BoolVar(&a.jsonMode, "json", false, "output as JSON")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newGridsCmd(a))
	root.AddCommand(newStateCmd(a))
	root.AddCommand(newSettingsCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitFailure)
	}
	os.Exit(exitSuccess)
}

// resolveDataDir applies --data-dir > data_dir (config or CRUDGRID_DATA_DIR)
// > $(CWD)/.crudgrid-db.
func (a *app) resolveDataDir() (string, error) {
	return paths.ResolveDataDir(a.dataDir, a.cfg.GetString(cfgKeyDataDir))
}

func (a *app) logger(service string) *slog.Logger {
	return logging.New(logging.Config{
		Level:   a.cfg.GetString(cfgKeyLogLevel),
		JSON:    a.cfg.GetBool(cfgKeyLogJSON),
		Service: service,
	})
}

func (a *app) loadCatalog() (*catalog.Catalog, error) {
	path := paths.ResolveFile(a.configDir, a.cfg.GetString(cfgKeyGridsFile))
	return catalog.Load(path)
}

// attachSettings attaches the SQLite settings backend. The caller must
// defer Detach.
func (a *app) attachSettings() (*sqlite.Backend, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	backend := sqlite.NewBackend()
	err = backend.Attach(types.Config{
		Backend:      types.BackendSQLite,
		DataDir:      paths.SettingsDir(dataDir),
		SQLiteConfig: &types.SQLiteConfig{SyncStrategy: a.cfg.GetString(cfgKeySyncStrategy)},
	})
	if err != nil {
		return nil, fmt.Errorf("attach settings backend: %w", err)
	}
	return backend, nil
}

// openSessions opens the on-disk session store. The caller must defer Close.
func (a *app) openSessions(logger *slog.Logger) (*session.Store, error) {
	dataDir, err := a.resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	store, err := session.Open(types.SessionConfig{
		Dir: paths.SessionsDir(dataDir),
		TTL: a.cfg.GetDuration(cfgKeySessionTTL),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return store, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
