package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesSelectedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.toml")
	data := `
log_level = "debug"

[drawing]
stroke_width = 4.5

[composite]
supersample = 4

[relay]
enabled = true
port = 9000

[export]
dpi = 600
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 4.5, cfg.Drawing.StrokeWidth, 1e-6)
	assert.Equal(t, 4, cfg.Composite.Supersample)
	assert.True(t, cfg.Relay.Enabled)
	assert.Equal(t, 9000, cfg.Relay.Port)
	assert.Equal(t, 600, cfg.Export.DPI)
	// untouched keys keep their defaults
	assert.Equal(t, 50, cfg.Drawing.HistoryLimit)
	assert.Equal(t, 600, cfg.Composite.Width)
	assert.Equal(t, "default", cfg.Storage.Project)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[composite]\nsupersample = 0\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
