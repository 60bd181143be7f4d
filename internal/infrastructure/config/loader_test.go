package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/deskgate/assets"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	home := t.TempDir()
	l := &FileLoader{home: home}
	t.Setenv(EnvConfigPath, "")

	cfg, err := l.Load(context.Background())
	require.NoError(t, err)

	path := filepath.Join(home, ".deskgate", "config.yaml")
	assert.Equal(t, path, l.Path())
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, assets.DefaultConfigYAML, written)

	assert.Equal(t, "1.0.0", cfg.ConfigFormatVersion)
	assert.Contains(t, cfg.Allowlist.Roots, filepath.Join(home, "Documents"))
	assert.Equal(t, []string{"SystemSettings", "ApplicationFrameHost"}, cfg.Automation.OwnersFor("settings"))
	assert.Equal(t, "sqlite", cfg.Audit.Driver)
	require.Len(t, cfg.Policy.DenyRules, 1)
}

func TestLoadHonoursEnvOverrideAndHydrates(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allowlist:\n  roots: [\"~/work\"]\n"), 0o600))
	t.Setenv(EnvConfigPath, path)

	l := &FileLoader{home: home}
	cfg, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, path, l.Path())
	assert.Equal(t, []string{filepath.Join(home, "work")}, cfg.Allowlist.Roots)
	assert.Equal(t, "auto", cfg.Execution.Shell)
	assert.Equal(t, "auto", cfg.Elevation.Launcher)
	assert.Equal(t, 0.9, cfg.Automation.ImageConfidence)
	assert.Equal(t, "tesseract", cfg.Automation.OCRCommand)
	assert.Equal(t, "deskgate", cfg.Observability.ServiceName)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("policy:\n  max_actoins: 3\n"))
	require.Error(t, err)

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.ConfigFormatVersion)
}

func TestDefaultsParse(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "60s", cfg.Execution.ActionTimeout)
	assert.Equal(t, 50, cfg.Policy.MaxActions)
}

func TestExpand(t *testing.T) {
	l := &FileLoader{home: "/home/ana"}
	assert.Equal(t, "/home/ana", l.expand("~"))
	assert.Equal(t, filepath.Join("/home/ana", "Documents"), l.expand("~/Documents"))
	assert.Equal(t, "/srv/data", l.expand("/srv/data"))
	assert.Equal(t, "rel", l.expand("./rel"))
}

func TestFirstRunMatchesResolvedDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvConfigPath, "")
	l := &FileLoader{home: home}

	cfg, err := l.Load(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(l.ResolvedDefaults(), cfg); diff != "" {
		t.Fatalf("first-run config differs from defaults (-want +got):\n%s", diff)
	}
}
