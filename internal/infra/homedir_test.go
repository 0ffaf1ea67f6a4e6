package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveHomeDir_Env(t *testing.T) {
	t.Setenv(EnvHome, "/srv/farmerbot")
	assert.Equal(t, "/srv/farmerbot", ResolveHomeDir())
}

func TestResolveHomeDir_Default(t *testing.T) {
	t.Setenv(EnvHome, "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".farmerbot"), ResolveHomeDir())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, filepath.Join(home, "bot.json"), ExpandHome("~/bot.json"))
	assert.Equal(t, "/etc/bot.json", ExpandHome("/etc/bot.json"))
	assert.Equal(t, "", ExpandHome(""))
}
