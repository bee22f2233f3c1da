package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bohica-labs/writescore-installer/internal/config/validate"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name searched for when no --config is given.
const ConfigFileName = "writescore-installer.yml"

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// GlobalConfig holds tool-wide settings. Formula contents never live here.
type GlobalConfig struct {
	// Prefix is where binaries are linked (<prefix>/bin).
	Prefix string `yaml:"prefix"`
	// Cellar holds one keg per <name>/<version>. Defaults to <prefix>/Cellar.
	Cellar   string `yaml:"cellar"`
	CacheDir string `yaml:"cache_dir"`
	WorkDir  string `yaml:"work_dir"`
	TempDir  string `yaml:"temp_dir"`
	// Python overrides interpreter discovery.
	Python      string        `yaml:"python"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Logging     LoggingConfig `yaml:"logging"`

	// path the config was loaded from, empty for defaults
	source string
}

// DefaultPrefix returns the platform's conventional install prefix.
func DefaultPrefix() string {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return "/opt/homebrew"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "writescore-installer")
	}
	return "/usr/local"
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "writescore-installer")
	}
	return filepath.Join(os.TempDir(), "writescore-installer-cache")
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *GlobalConfig {
	return &GlobalConfig{
		Prefix:      DefaultPrefix(),
		CacheDir:    defaultCacheDir(),
		WorkDir:     filepath.Join(os.TempDir(), "writescore-installer"),
		HTTPTimeout: 10 * time.Minute,
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Source returns the file this config was loaded from, or "" for defaults.
func (c *GlobalConfig) Source() string { return c.source }

// CellarDir returns Cellar, defaulting to <prefix>/Cellar.
func (c *GlobalConfig) CellarDir() string {
	if c.Cellar != "" {
		return c.Cellar
	}
	return filepath.Join(c.Prefix, "Cellar")
}

// Validate checks the values that the schema cannot express.
func (c *GlobalConfig) Validate() error {
	if strings.TrimSpace(c.Prefix) == "" {
		return fmt.Errorf("prefix must not be empty")
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative")
	}
	return nil
}

// SearchPaths lists where a config file is looked for, in order.
func SearchPaths() []string {
	paths := []string{ConfigFileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "writescore-installer", ConfigFileName))
	}
	paths = append(paths, filepath.Join("/etc", "writescore-installer", ConfigFileName))
	return paths
}

// LoadGlobalConfig reads path, or the first existing file in SearchPaths
// when path is empty. A missing file on the search path yields defaults;
// an explicit path that does not exist is an error.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := DefaultConfig()

	if path == "" {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := validate.ValidateConfigYAML(data); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.source = path
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Environment variables that override the file.
const (
	EnvPrefix   = "WSI_PREFIX"
	EnvCellar   = "WSI_CELLAR"
	EnvCacheDir = "WSI_CACHE_DIR"
	EnvWorkDir  = "WSI_WORK_DIR"
	EnvPython   = "WSI_PYTHON"
	EnvLogLevel = "WSI_LOG_LEVEL"
	EnvTimeout  = "WSI_HTTP_TIMEOUT"
)

func applyEnvOverrides(cfg *GlobalConfig) error {
	if v := os.Getenv(EnvPrefix); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv(EnvCellar); v != "" {
		cfg.Cellar = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(EnvWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(EnvPython); v != "" {
		cfg.Python = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.HTTPTimeout = d
	}
	return nil
}

var (
	globalMu     sync.RWMutex
	globalConfig *GlobalConfig
)

// SetGlobal installs cfg as the process-wide configuration.
func SetGlobal(cfg *GlobalConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// Global returns the process-wide configuration, defaults if none is set.
func Global() *GlobalConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalConfig == nil {
		return DefaultConfig()
	}
	return globalConfig
}

// ErrConfigExists is returned by WriteDefault when the target already exists.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault writes the default configuration to path.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrConfigExists)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
