package config

import (
	"fmt"
	"os"
	"path/filepath"

	globalcfg "github.com/bohica-labs/writescore-installer/internal/config"
)

// ConfigHelpers provides convenient access to the global configuration
type ConfigHelpers struct {
	config *globalcfg.GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(cfg *globalcfg.GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: cfg}
}

// Prefix returns the absolute install prefix
func (c *ConfigHelpers) Prefix() (string, error) {
	return filepath.Abs(c.config.Prefix)
}

// BinDir returns the absolute directory binaries are linked into
func (c *ConfigHelpers) BinDir() (string, error) {
	prefix, err := c.Prefix()
	if err != nil {
		return "", err
	}
	return filepath.Join(prefix, "bin"), nil
}

// CellarDir returns the absolute cellar directory
func (c *ConfigHelpers) CellarDir() (string, error) {
	return filepath.Abs(c.config.CellarDir())
}

// CacheDir returns the absolute path to the download cache
func (c *ConfigHelpers) CacheDir() (string, error) {
	return filepath.Abs(c.config.CacheDir)
}

// WorkDir returns the absolute path to the work directory
func (c *ConfigHelpers) WorkDir() (string, error) {
	return filepath.Abs(c.config.WorkDir)
}

// ReportDir returns where step reports are written
func (c *ConfigHelpers) ReportDir() (string, error) {
	workDir, err := c.WorkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(workDir, "reports"), nil
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// GetConfig returns the underlying global config
func (c *ConfigHelpers) GetConfig() *globalcfg.GlobalConfig {
	return c.config
}

// CreateCacheDir ensures the cache directory exists
func (c *ConfigHelpers) CreateCacheDir() (string, error) {
	cacheDir, err := c.CacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving cache directory: %w", err)
	}
	return cacheDir, createDirIfNotExists(cacheDir)
}

// CreateWorkDir ensures the work directory exists
func (c *ConfigHelpers) CreateWorkDir() (string, error) {
	workDir, err := c.WorkDir()
	if err != nil {
		return "", fmt.Errorf("resolving work directory: %w", err)
	}
	return workDir, createDirIfNotExists(workDir)
}

// CreateTempDir ensures a temp subdirectory exists
func (c *ConfigHelpers) CreateTempDir(subdir string) (string, error) {
	tempDir := filepath.Join(c.TempDir(), subdir)
	err := createDirIfNotExists(tempDir)
	return tempDir, err
}

func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
