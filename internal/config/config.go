// Package config holds the viper defaults and the path conventions the
// commands share.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers the default configuration values. Everything
// here can be overridden in config.yaml or with INTELLIDOC_* variables.
func SetDefaults() {
	viper.SetDefault("database.path", "$HOME/.local/share/intellidoc/annotations.db")

	viper.SetDefault("bridge.listen", "127.0.0.1:8475")

	viper.SetDefault("watcher.enabled", true)
	viper.SetDefault("watcher.debounce", 500*time.Millisecond)

	viper.SetDefault("reconcile.max_attempts", 5)
	viper.SetDefault("reconcile.delay", 200*time.Millisecond)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
}

// ExpandPath resolves the shorthand users put in config values and
// --doc flags: $VAR references and a leading tilde. Anything else
// passes through unchanged.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	path = os.ExpandEnv(path)

	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}

	return path
}
