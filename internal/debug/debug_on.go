//go:build debug

// Package debug provides a centralized, categorized debug logging system.
// Build with -tags debug to enable logging.
package debug

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Enabled indicates whether debug logging is active
const Enabled = true

// Category represents a debug logging category
type Category string

const (
	// Core categories
	APP      Category = "APP"      // CLI wiring, startup, shutdown
	SCAN     Category = "SCAN"     // Rescan walk and reconciliation
	STORE    Category = "STORE"    // SQLite schema, transactions
	CATALOG  Category = "CATALOG"  // Page loading, selection propagation
	EXPLORER Category = "EXPLORER" // Worker requests, page ids
	IMAGE    Category = "IMAGE"    // Decoding, resizing, cache
	PLAYLIST Category = "PLAYLIST" // Slideshow ordering

	// Detailed subcategories (use sparingly - can be verbose)
	SCAN_ENTRY     Category = "SCAN_ENTRY"     // Every walked file
	EXPLORER_STAGE Category = "EXPLORER_STAGE" // Every display step
)

var (
	enabledCategories = map[Category]bool{
		APP:      true,
		SCAN:     true,
		STORE:    true,
		CATALOG:  true,
		EXPLORER: true,
		IMAGE:    true,
		PLAYLIST: true,
		// Verbose categories disabled by default
		SCAN_ENTRY:     false,
		EXPLORER_STAGE: false,
	}
	categoryMu sync.RWMutex

	logger = newLogger()
)

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.WithCaller(false))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

func init() {
	// Format: PHOTOFRAME_DEBUG=SCAN,EXPLORER or PHOTOFRAME_DEBUG=all or PHOTOFRAME_DEBUG=none
	if env := os.Getenv("PHOTOFRAME_DEBUG"); env != "" {
		categoryMu.Lock()
		defer categoryMu.Unlock()

		env = strings.ToUpper(env)
		switch env {
		case "ALL":
			for cat := range enabledCategories {
				enabledCategories[cat] = true
			}
		case "NONE":
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
		default:
			for cat := range enabledCategories {
				enabledCategories[cat] = false
			}
			for _, cat := range strings.Split(env, ",") {
				enabledCategories[Category(strings.TrimSpace(cat))] = true
			}
		}
	}
}

// Log logs a debug message for the specified category
func Log(cat Category, format string, args ...interface{}) {
	categoryMu.RLock()
	enabled := enabledCategories[cat]
	categoryMu.RUnlock()

	if !enabled {
		return
	}

	logger.Debugw(fmt.Sprintf(format, args...), "cat", string(cat))
}

// Enable enables a debug category
func Enable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = true
	categoryMu.Unlock()
}

// Disable disables a debug category
func Disable(cat Category) {
	categoryMu.Lock()
	enabledCategories[cat] = false
	categoryMu.Unlock()
}

// IsEnabled returns whether a category is enabled
func IsEnabled(cat Category) bool {
	categoryMu.RLock()
	defer categoryMu.RUnlock()
	return enabledCategories[cat]
}

// EnableAll enables all debug categories including verbose ones
func EnableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = true
	}
	categoryMu.Unlock()
}

// DisableAll disables all debug categories
func DisableAll() {
	categoryMu.Lock()
	for cat := range enabledCategories {
		enabledCategories[cat] = false
	}
	categoryMu.Unlock()
}

// ListEnabled returns a slice of currently enabled categories
func ListEnabled() []Category {
	categoryMu.RLock()
	defer categoryMu.RUnlock()

	var enabled []Category
	for cat, on := range enabledCategories {
		if on {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}
