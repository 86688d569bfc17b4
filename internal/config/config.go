package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. PHOTOFRAME_LIBRARY_PHOTOROOT.
const EnvPrefix = "PHOTOFRAME"

// Config holds all user-configurable settings loaded from config.json
type Config struct {
	Library   LibraryConfig   `mapstructure:"library" json:"library"`
	Explorer  ExplorerConfig  `mapstructure:"explorer" json:"explorer"`
	Display   DisplayConfig   `mapstructure:"display" json:"display"`
	Slideshow SlideshowConfig `mapstructure:"slideshow" json:"slideshow"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// LibraryConfig locates the photos and the catalog database
type LibraryConfig struct {
	PhotoRoot      string `mapstructure:"photoRoot" json:"photoRoot"`
	DatabasePath   string `mapstructure:"databasePath" json:"databasePath"`
	FollowSymlinks bool   `mapstructure:"followSymlinks" json:"followSymlinks"`
	LostPolicy     string `mapstructure:"lostPolicy" json:"lostPolicy"` // "retain" | "prune"
}

// ExplorerConfig holds browsing settings
type ExplorerConfig struct {
	ItemsPerPage int `mapstructure:"itemsPerPage" json:"itemsPerPage"`
	IdleWaitMs   int `mapstructure:"idleWaitMs" json:"idleWaitMs"`
}

// IdleWait returns the worker idle wait as a duration.
func (c ExplorerConfig) IdleWait() time.Duration {
	return time.Duration(c.IdleWaitMs) * time.Millisecond
}

// DisplayConfig is the box photos are fitted into
type DisplayConfig struct {
	Width  int `mapstructure:"width" json:"width"`
	Height int `mapstructure:"height" json:"height"`
}

// Bounds returns the display size as a point.
func (c DisplayConfig) Bounds() image.Point {
	return image.Pt(c.Width, c.Height)
}

// SlideshowConfig holds playlist settings
type SlideshowConfig struct {
	Shuffle       bool `mapstructure:"shuffle" json:"shuffle"`
	ChangeSeconds int  `mapstructure:"changeSeconds" json:"changeSeconds"`
}

// Interval returns the time each slide stays on screen.
func (c SlideshowConfig) Interval() time.Duration {
	return time.Duration(c.ChangeSeconds) * time.Second
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	Development bool   `mapstructure:"development" json:"development"`
}

// Manager handles loading, saving, and accessing configuration
type Manager struct {
	mu       sync.RWMutex
	v        *viper.Viper
	config   *Config
	path     string
	parseErr error // Stores parsing error if config failed to load
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return &Manager{
		v:      v,
		config: DefaultConfig(),
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Library: LibraryConfig{
			PhotoRoot:    filepath.Join(home, "Pictures"),
			DatabasePath: filepath.Join(configDir(), "catalog.db"),
			LostPolicy:   "retain",
		},
		Explorer: ExplorerConfig{
			ItemsPerPage: 9,
			IdleWaitMs:   100,
		},
		Display: DisplayConfig{
			Width:  1280,
			Height: 800,
		},
		Slideshow: SlideshowConfig{
			ChangeSeconds: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every key so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("library.photoRoot", d.Library.PhotoRoot)
	v.SetDefault("library.databasePath", d.Library.DatabasePath)
	v.SetDefault("library.followSymlinks", d.Library.FollowSymlinks)
	v.SetDefault("library.lostPolicy", d.Library.LostPolicy)
	v.SetDefault("explorer.itemsPerPage", d.Explorer.ItemsPerPage)
	v.SetDefault("explorer.idleWaitMs", d.Explorer.IdleWaitMs)
	v.SetDefault("display.width", d.Display.Width)
	v.SetDefault("display.height", d.Display.Height)
	v.SetDefault("slideshow.shuffle", d.Slideshow.Shuffle)
	v.SetDefault("slideshow.changeSeconds", d.Slideshow.ChangeSeconds)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "photoframe")
}

// ConfigPath returns the config file path: ~/.config/photoframe/config.json
func ConfigPath() string {
	return filepath.Join(configDir(), "config.json")
}

// Load reads the configuration from path, or ConfigPath when path is empty.
// If the file doesn't exist, creates it with defaults.
// If parsing fails, stores the error and falls back to defaults (env
// overrides still apply).
func (m *Manager) Load(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if path == "" {
		path = ConfigPath()
	}
	m.path = path
	m.parseErr = nil

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	if _, err := os.Stat(m.path); errors.Is(err, os.ErrNotExist) {
		logging.Info("creating default config", zap.String("path", m.path))
		m.config = DefaultConfig()
		if err := m.saveUnlocked(); err != nil {
			return fmt.Errorf("config: save defaults: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	m.v.SetConfigFile(m.path)
	if err := m.v.ReadInConfig(); err != nil {
		logging.Warn("config unreadable, using defaults", zap.String("path", m.path), zap.Error(err))
		m.parseErr = err
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		m.parseErr = err
		cfg = *DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = &cfg
	logging.Debug("config loaded", zap.String("path", m.path))
	return nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Explorer.ItemsPerPage < 1 {
		return fmt.Errorf("config: explorer.itemsPerPage must be at least 1, got %d", c.Explorer.ItemsPerPage)
	}
	if c.Display.Width < 0 || c.Display.Height < 0 {
		return fmt.Errorf("config: display size %dx%d is negative", c.Display.Width, c.Display.Height)
	}
	if c.Library.DatabasePath == "" {
		return errors.New("config: library.databasePath is empty")
	}
	return nil
}

// saveUnlocked saves config without acquiring lock (caller must hold lock)
func (m *Manager) saveUnlocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.path == "" {
		m.path = ConfigPath()
	}
	return m.saveUnlocked()
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return *DefaultConfig()
	}
	return *m.config
}

// Path returns the file Load read from.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// ParseError returns the parsing error if config failed to load
func (m *Manager) ParseError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parseErr
}

// SetPhotoRoot updates the library root
func (m *Manager) SetPhotoRoot(root string) error {
	m.mu.Lock()
	m.config.Library.PhotoRoot = root
	m.mu.Unlock()
	return m.Save()
}
