package config

import (
	"slices"
	"sort"

	"promptduel/internal/fault"
	"promptduel/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string          `yaml:"format" validate:"omitempty,oneof=json text"`
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no logging (production)
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// Settings converts the config section for logging.Initialize.
func (c LoggingConfig) Settings() logging.Settings {
	return logging.Settings{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		JSONFormat: c.Format == "json",
		Categories: c.Categories,
	}
}

// validateCategories rejects toggles for categories the logger does not know.
func (c LoggingConfig) validateCategories() error {
	known := logging.AllCategories()
	var unknown []string
	for name := range c.Categories {
		if !slices.Contains(known, logging.Category(name)) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fault.Configurationf("logging.categories: unknown category %q", unknown[0])
	}
	return nil
}
