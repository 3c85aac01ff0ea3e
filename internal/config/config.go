package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"kvrpc/internal/logging"
)

type Config struct {
	Server ServerConfig `toml:"server" yaml:"server"`
	Pool   PoolConfig   `toml:"pool" yaml:"pool"`
	Store  StoreConfig  `toml:"store" yaml:"store"`
	Log    LogConfig    `toml:"log" yaml:"log"`
}

type ServerConfig struct {
	Listen          string        `toml:"listen" yaml:"listen"`
	Name            string        `toml:"name" yaml:"name"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type PoolConfig struct {
	Workers int `toml:"workers" yaml:"workers"`
}

type StoreConfig struct {
	// Seed is the number of key<i> -> value<i> entries inserted at startup.
	Seed int `toml:"seed" yaml:"seed"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8081",
			Name:            "KeyValue",
			ShutdownTimeout: 5 * time.Second,
		},
		Pool:  PoolConfig{Workers: 3},
		Store: StoreConfig{Seed: 5},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads a TOML or YAML config file (chosen by extension) over the
// defaults and then applies environment overrides. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		default:
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from KV_* variables looked up through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("KV_LISTEN_ADDR"); v != "" {
		c.Server.Listen = v
	}
	if v := getenv("KV_SERVICE_NAME"); v != "" {
		c.Server.Name = v
	}
	if v := getenv("KV_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KV_WORKERS: %w", err)
		}
		c.Pool.Workers = n
	}
	if v := getenv("KV_SEED"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KV_SEED: %w", err)
		}
		c.Store.Seed = n
	}
	if v := getenv("KV_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("KV_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if c.Server.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
			return fmt.Errorf("server.listen %q: %w", c.Server.Listen, err)
		}
	}
	if c.Server.Name == "" {
		return fmt.Errorf("server.name must not be empty")
	}
	if strings.Contains(c.Server.Name, "/") {
		return fmt.Errorf("server.name %q must not contain '/'", c.Server.Name)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must not be negative")
	}
	if c.Pool.Workers < 1 {
		return fmt.Errorf("pool.workers must be at least 1, got %d", c.Pool.Workers)
	}
	if c.Store.Seed < 0 {
		return fmt.Errorf("store.seed must not be negative, got %d", c.Store.Seed)
	}
	if !logging.ValidFormat(c.Log.Format) {
		return fmt.Errorf("log.format %q: expected console, text or json", c.Log.Format)
	}
	return nil
}
