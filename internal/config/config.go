// Package config loads the brokeshot configuration from an optional YAML file
// and BROKESHOT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "BROKESHOT_"

type Config struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	FrameSize      int           `yaml:"frame_size"`
	Listen         string        `yaml:"listen"`
	DBPath         string        `yaml:"db_path"`
	LibraryDir     string        `yaml:"library_dir"`
	LogLevel       string        `yaml:"log_level"`
}

func Defaults() *Config {
	return &Config{
		Endpoint:    "http://localhost:8000/analyze",
		MaxUploadMB: 25,
		FrameSize:   512,
		Listen:      ":8080",
		DBPath:      "./brokeshot.db",
		LibraryDir:  "./library",
		LogLevel:    "info",
	}
}

// Load layers the YAML file at path (skipped when empty) and the environment
// over the defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"ENDPOINT":    &c.Endpoint,
		"API_KEY":     &c.APIKey,
		"LISTEN":      &c.Listen,
		"DB_PATH":     &c.DBPath,
		"LIBRARY_DIR": &c.LibraryDir,
		"LOG_LEVEL":   &c.LogLevel,
	}
	for name, dst := range strs {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_UPLOAD_MB": &c.MaxUploadMB,
		"FRAME_SIZE":    &c.FrameSize,
	}
	for name, dst := range ints {
		if v := getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*dst = n
		}
	}

	if v := getenv(envPrefix + "REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err)
		}
		c.RequestTimeout = d
	}

	return nil
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an absolute URL", c.Endpoint)
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.LibraryDir == "" {
		return errors.New("library_dir is required")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("max_upload_mb must be > 0")
	}
	if c.FrameSize < 0 {
		return errors.New("frame_size must be >= 0")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request_timeout must be >= 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }
