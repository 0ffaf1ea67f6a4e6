package infra

import (
	"os"
	"path/filepath"
	"strings"
)

const EnvHome = "FARMERBOT_HOME"

// ResolveHomeDir returns the data directory for farmerbot: $FARMERBOT_HOME
// when set, otherwise ~/.farmerbot.
func ResolveHomeDir() string {
	if envHome := ExpandHome(strings.TrimSpace(os.Getenv(EnvHome))); envHome != "" {
		return envHome
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return filepath.Join(os.TempDir(), ".farmerbot")
	}
	return filepath.Join(home, ".farmerbot")
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
