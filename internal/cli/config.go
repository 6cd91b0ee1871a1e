// Config loading for the crudgrid CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/crudgrid/internal/catalog"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir      = "data_dir"
	cfgKeyGridsFile    = "grids_file"
	cfgKeyListen       = "listen"
	cfgKeySessionTTL   = "session_ttl"
	cfgKeySyncStrategy = "sync_strategy"
	cfgKeyLogLevel     = "log_level"
	cfgKeyLogJSON      = "log_json"

	defaultListen     = ":8080"
	defaultSessionTTL = 24 * time.Hour
	defaultLogLevel   = "info"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# crudgrid configuration

# Grid definitions, relative to this directory.
grids_file: grids.yaml

# Data directory (optional; overridable by --data-dir and CRUDGRID_DATA_DIR)
# data_dir:

# HTTP listen address for "crudgrid serve".
listen: ":8080"

# Lifetime of browser session state. 0 keeps it until deleted.
session_ttl: 24h

# settings.jsonl sync strategy: immediate, on_close or batch.
sync_strategy: immediate

log_level: info
log_json: false
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. Keys can be overridden
// by CRUDGRID_<KEY> environment variables.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeFileIfMissing(filepath.Join(configDir, configFileExt), defaultConfigYAML); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyGridsFile, catalog.FileName)
	v.SetDefault(cfgKeyListen, defaultListen)
	v.SetDefault(cfgKeySessionTTL, defaultSessionTTL)
	v.SetDefault(cfgKeySyncStrategy, types.SyncImmediate)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyLogJSON, false)

	v.SetEnvPrefix("crudgrid")
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeFileIfMissing creates path with content unless it already exists.
func writeFileIfMissing(path, content string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
