// Package config loads the service configuration from YAML.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	SourceDir    = "dir"
	SourceSQLite = "sqlite"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log       LogConfig `yaml:"log"`
	Artifacts struct {
		Source     string        `yaml:"source"`
		Path       string        `yaml:"path"`
		Compressed bool          `yaml:"compressed"`
		Watch      bool          `yaml:"watch"`
		Debounce   time.Duration `yaml:"debounce"`
	} `yaml:"artifacts"`
	Monitoring struct {
		RecentSize int  `yaml:"recent_size"`
		Websocket  bool `yaml:"websocket"`
	} `yaml:"monitoring"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 5000
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Http.MaxBodyBytes == 0 {
		c.Http.MaxBodyBytes = 1 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Artifacts.Source == "" {
		c.Artifacts.Source = SourceDir
	}
	if c.Artifacts.Path == "" {
		c.Artifacts.Path = "models"
	}
	if c.Artifacts.Debounce == 0 {
		c.Artifacts.Debounce = 500 * time.Millisecond
	}
	if c.Monitoring.RecentSize == 0 {
		c.Monitoring.RecentSize = 256
	}
}

func (c *Config) validate() error {
	switch c.Artifacts.Source {
	case SourceDir, SourceSQLite:
	default:
		return errors.Errorf("unsupported artifact source %q", c.Artifacts.Source)
	}
	if c.Artifacts.Watch && c.Artifacts.Source != SourceDir {
		return errors.New("artifacts.watch needs a dir source")
	}
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Http.Port)
	}
	return nil
}

// Load decodes the file at path, fills defaults and resolves a relative
// artifact path against the file's directory.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(config.Artifacts.Path) {
		config.Artifacts.Path = filepath.Join(filepath.Dir(path), config.Artifacts.Path)
	}
	if config.Log.File != "" && !filepath.IsAbs(config.Log.File) {
		config.Log.File = filepath.Join(filepath.Dir(path), config.Log.File)
	}
	return &config, nil
}

// Locate returns the first candidate that exists, looking in the working
// directory first and its parent second.
func Locate(name string) string {
	for _, candidate := range []string{name, filepath.Join("..", name)} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return name
}
