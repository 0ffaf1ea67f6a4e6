package internal

import (
	"fmt"
	"runtime"

	"github.com/aiml096/farmer-bot/pkg/config"
)

const Logo = "🌾"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// LoadConfig resolves the config path from flagValue and the environment,
// then loads it.
func LoadConfig(flagValue string) (*config.Config, string, error) {
	path := config.ResolveConfigPath(flagValue)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
