package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

const appName = "pagepilot"

// UserConfigPath returns the first existing user config file, preferring
// JSON, or the JSON path when none exists.
func UserConfigPath(fsys afero.Fs) string {
	dir := filepath.Join(xdg.ConfigHome, appName)
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if ok, _ := afero.Exists(fsys, path); ok {
			return path
		}
	}
	return filepath.Join(dir, "config.json")
}

// DatabasePath returns the sqlite path for cfg. The data directory wins over
// XDG_STATE_HOME.
func DatabasePath(cfg *Config) string {
	if cfg != nil && cfg.Data.Directory != "" {
		return filepath.Join(cfg.Data.Directory, appName+".db")
	}
	return filepath.Join(xdg.StateHome, appName, appName+".db")
}

// GetDefaultCachePath returns the default cache directory path
func GetDefaultCachePath() string {
	return filepath.Join(xdg.CacheHome, appName)
}
