package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aiml096/farmer-bot/internal/infra"
)

const EnvConfigPath = "FARMERBOT_CONFIG"

// ResolveConfigPath picks the config file location: an explicit flag value,
// then $FARMERBOT_CONFIG, then config.json under the farmerbot home directory.
func ResolveConfigPath(flagValue string) string {
	if p := infra.ExpandHome(strings.TrimSpace(flagValue)); p != "" {
		return p
	}
	if p := infra.ExpandHome(strings.TrimSpace(os.Getenv(EnvConfigPath))); p != "" {
		return p
	}
	return filepath.Join(infra.ResolveHomeDir(), "config.json")
}
