package config

import (
	"errors"
	"fmt"
	"net"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if c.Journal.MaxEntries < 0 {
		return errors.New("journal.max_entries must be zero or positive")
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	switch c.Backend.Mode {
	case BackendModeWarm:
		if c.Backend.ModulePath == "" {
			return errors.New("backend.module_path is required when backend.mode is warm")
		}
		if c.Backend.ModuleClass == "" {
			return errors.New("backend.module_class is required when backend.mode is warm")
		}
	case BackendModeCold:
		if c.Backend.CLIScript == "" {
			return errors.New("backend.cli_script is required when backend.mode is cold")
		}
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q", BackendModeWarm, BackendModeCold, c.Backend.Mode)
	}
	if c.Backend.StartupTimeoutSeconds <= 0 {
		return errors.New("backend.startup_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}
