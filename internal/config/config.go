// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backends selectable via config.
const (
	StoreMemory    = "memory"
	StoreSQLite    = "sqlite"
	StoreFirestore = "firestore"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	Store struct {
		Backend          string `yaml:"backend"`
		SQLitePath       string `yaml:"sqlite_path"`
		FirestoreProject string `yaml:"firestore_project"`
	} `yaml:"store"`

	FX struct {
		FromCurrency string `yaml:"from_currency"`
		ToCurrency   string `yaml:"to_currency"`
	} `yaml:"fx"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
	}
	cfg.Store.Backend = StoreSQLite
	cfg.Store.SQLitePath = "fpa.db"
	cfg.FX.FromCurrency = "EUR"
	cfg.FX.ToCurrency = "USD"
	return cfg
}

// Load reads the YAML file at path (when non-empty) over the defaults, then
// applies environment overrides, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FPA_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FPA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FPA_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("FPA_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("FPA_FIRESTORE_PROJECT"); v != "" {
		cfg.Store.FirestoreProject = v
	}
	if v := os.Getenv("FPA_FX_FROM"); v != "" {
		cfg.FX.FromCurrency = v
	}
	if v := os.Getenv("FPA_FX_TO"); v != "" {
		cfg.FX.ToCurrency = v
	}
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case StoreFirestore:
		if c.Store.FirestoreProject == "" {
			return fmt.Errorf("store.firestore_project is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.FX.FromCurrency == "" || c.FX.ToCurrency == "" {
		return fmt.Errorf("fx.from_currency and fx.to_currency are required")
	}
	return nil
}
