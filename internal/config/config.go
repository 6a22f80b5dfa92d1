// Package config loads pipescope settings from the environment and builds
// the shared logger.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EnvAddr        = "PIPESCOPE_ADDR"
	EnvLogLevel    = "PIPESCOPE_LOG_LEVEL"
	EnvLogFormat   = "PIPESCOPE_LOG_FORMAT"
	EnvStepDelay   = "PIPESCOPE_STEP_DELAY"
	EnvMaxBodySize = "PIPESCOPE_MAX_BODY_BYTES"
	EnvDVCBinary   = "PIPESCOPE_DVC_BIN"
	EnvDVCRoot     = "PIPESCOPE_DVC_ROOT"
	EnvCORSOrigin  = "CORS_ALLOWED_ORIGIN"
)

// Config holds the process settings. DVCRoot enables running dvc for API
// requests, limited to projects below that directory; when empty, posted DVC
// files are built from their content and nothing is executed.
type Config struct {
	Addr         string
	LogLevel     string
	LogFormat    string
	StepDelay    time.Duration
	MaxBodyBytes int
	DVCBinary    string
	DVCRoot      string
	CORSOrigin   string
}

// Default returns the settings used when no environment overrides are set.
func Default() Config {
	return Config{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
		StepDelay:    500 * time.Millisecond,
		MaxBodyBytes: 10 << 20,
		CORSOrigin:   "*",
	}
}

// Load reads the environment on top of Default and validates the result.
func Load() (Config, error) {
	def := Default()
	cfg := Config{
		Addr:       envString(EnvAddr, def.Addr),
		LogLevel:   strings.ToLower(envString(EnvLogLevel, def.LogLevel)),
		LogFormat:  strings.ToLower(envString(EnvLogFormat, def.LogFormat)),
		DVCBinary:  envString(EnvDVCBinary, def.DVCBinary),
		DVCRoot:    envString(EnvDVCRoot, def.DVCRoot),
		CORSOrigin: envString(EnvCORSOrigin, def.CORSOrigin),
	}

	var err error
	if cfg.StepDelay, err = envDuration(EnvStepDelay, def.StepDelay); err != nil {
		return Config{}, err
	}
	if cfg.MaxBodyBytes, err = envInt(EnvMaxBodySize, def.MaxBodyBytes); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return errors.New("addr is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.LogFormat)
	}
	if c.StepDelay < 0 {
		return fmt.Errorf("step delay must not be negative, got %s", c.StepDelay)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}
