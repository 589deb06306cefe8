// Package config loads runtime settings from the environment, with an
// optional .env file, and validates them on startup.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Logging LoggingConfig
	Convert ConvertConfig
	Picker  PickerConfig
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"OCT_LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"OCT_LOG_FORMAT" default:"text"`

	// File receives log output; empty disables logging
	File string `env:"OCT_LOG_FILE"`
}

// ConvertConfig holds conversion run settings.
type ConvertConfig struct {
	// SettleDelay is the pause between the encoding check and the conversion (default: 1.6s)
	SettleDelay time.Duration `env:"OCT_SETTLE_DELAY" default:"1600ms"`
}

// PickerConfig holds file picker settings.
type PickerConfig struct {
	// StartDir is where the pickers open (default: working directory)
	StartDir string `env:"OCT_START_DIR"`

	// ShowHidden shows dotfiles in the pickers (default: false)
	ShowHidden bool `env:"OCT_SHOW_HIDDEN" default:"false"`
}
