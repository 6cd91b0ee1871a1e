// Package paths resolves where crudgrid keeps its configuration, grid
// catalog, settings database and session store.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName is the directory name used under platform config and data roots.
const appName = "crudgrid"

// CWD-relative data directory used when nothing else is configured.
const DefaultDataDirName = ".crudgrid-db"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CRUDGRID_CONFIG_DIR"
	EnvDataDir   = "CRUDGRID_DATA_DIR"
)

// Layout inside the data directory.
const (
	SettingsDirName = "settings"
	SessionsDirName = "sessions"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/crudgrid (fallback ~/.config/crudgrid)
// Others:  os.UserConfigDir()/crudgrid
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain flag > CRUDGRID_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain
// flag > config file value > CRUDGRID_DATA_DIR > $(CWD)/.crudgrid-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, dir := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ResolveFile returns name unchanged when absolute, otherwise joined to dir.
// Used for grids_file, which is relative to the config directory.
func ResolveFile(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// SettingsDir returns the settings database directory under dataDir.
func SettingsDir(dataDir string) string {
	return filepath.Join(dataDir, SettingsDirName)
}

// SessionsDir returns the session store directory under dataDir.
func SessionsDir(dataDir string) string {
	return filepath.Join(dataDir, SessionsDirName)
}
