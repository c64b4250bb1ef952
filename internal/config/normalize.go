package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeBackend(); err != nil {
		return err
	}
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() error {
	if value, ok := os.LookupEnv("GMAILD_BACKEND_MODE"); ok && strings.TrimSpace(value) != "" {
		c.Backend.Mode = value
	}
	if value, ok := os.LookupEnv("GMAILD_PYTHON"); ok && strings.TrimSpace(value) != "" {
		c.Backend.Python = value
	}
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	if c.Backend.Mode == "" {
		c.Backend.Mode = defaultBackendMode
	}
	c.Backend.Python = strings.TrimSpace(c.Backend.Python)
	if c.Backend.Python == "" {
		c.Backend.Python = defaultPython
	}
	c.Backend.ModuleClass = strings.TrimSpace(c.Backend.ModuleClass)

	var err error
	if c.Backend.ModulePath, err = expandPath(strings.TrimSpace(c.Backend.ModulePath)); err != nil {
		return fmt.Errorf("backend.module_path: %w", err)
	}
	if c.Backend.CLIScript, err = expandPath(strings.TrimSpace(c.Backend.CLIScript)); err != nil {
		return fmt.Errorf("backend.cli_script: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
