package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	m := NewManager()
	require.NoError(t, m.Load(path))
	assert.NoError(t, m.ParseError())
	assert.Equal(t, path, m.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *DefaultConfig(), onDisk)
	assert.Equal(t, *DefaultConfig(), m.Get())
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "library": {"photoRoot": "/srv/photos", "databasePath": "/srv/catalog.db", "lostPolicy": "prune"},
  "explorer": {"itemsPerPage": 4, "idleWaitMs": 250},
  "slideshow": {"shuffle": true}
}`), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(path))
	cfg := m.Get()
	assert.Equal(t, "/srv/photos", cfg.Library.PhotoRoot)
	assert.Equal(t, "prune", cfg.Library.LostPolicy)
	assert.Equal(t, 4, cfg.Explorer.ItemsPerPage)
	assert.Equal(t, 250*time.Millisecond, cfg.Explorer.IdleWait())
	assert.True(t, cfg.Slideshow.Shuffle)
	assert.Equal(t, 30*time.Second, cfg.Slideshow.Interval(), "missing keys keep defaults")
	assert.Equal(t, 1280, cfg.Display.Bounds().X)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PHOTOFRAME_EXPLORER_ITEMSPERPAGE", "12")
	t.Setenv("PHOTOFRAME_LOG_LEVEL", "debug")

	m := NewManager()
	require.NoError(t, m.Load(filepath.Join(t.TempDir(), "config.json")))
	cfg := m.Get()
	assert.Equal(t, 12, cfg.Explorer.ItemsPerPage)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseErrorFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	m := NewManager()
	require.NoError(t, m.Load(path))
	assert.Error(t, m.ParseError())
	assert.Equal(t, DefaultConfig().Explorer, m.Get().Explorer)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero page size", func(c *Config) { c.Explorer.ItemsPerPage = 0 }, false},
		{"negative display", func(c *Config) { c.Display.Width = -1 }, false},
		{"no database", func(c *Config) { c.Library.DatabasePath = "" }, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mutate(c)
			if tc.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestSetPhotoRootPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManager()
	require.NoError(t, m.Load(path))
	require.NoError(t, m.SetPhotoRoot("/mnt/card"))

	again := NewManager()
	require.NoError(t, again.Load(path))
	assert.Equal(t, "/mnt/card", again.Get().Library.PhotoRoot)
}
