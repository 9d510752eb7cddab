// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates the environment sitegraph runs in:
// PostgreSQL connection parameters, the build-folder root, an optional
// Python interpreter override for the (out-of-scope) QGIS project-file
// builder, the tile-server URL, and the server-mode secret key.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Feature: CORE_CONFIG

// ErrMissingEnv is returned when a required environment variable is unset.
var ErrMissingEnv = errors.New("required environment variable is not set")

// Config is the fully-resolved runtime environment.
type Config struct {
	PGHost     string `validate:"required"`
	PGPort     string `validate:"required,numeric"`
	PGDatabase string `validate:"required"`
	PGUser     string `validate:"required"`
	PGPassword string `validate:"required"`

	BuildRoot      string `validate:"required,dirpath|filepath"`
	PythonOverride string
	TileserverURL  string

	ServerSecret string
}

const (
	envPGHost     = "SITEGRAPH_PG_HOST"
	envPGPort     = "SITEGRAPH_PG_PORT"
	envPGDatabase = "SITEGRAPH_PG_DATABASE"
	envPGUser     = "SITEGRAPH_PG_USER"
	envPGPassword = "SITEGRAPH_PG_PASSWORD"
	envBuildRoot  = "SITEGRAPH_BUILD_ROOT"
	envPython     = "SITEGRAPH_PYTHON"
	envTileserver = "SITEGRAPH_TILESERVER_URL"
	envSecret     = "SITEGRAPH_SERVER_SECRET"

	secretFileRelPath = "install/secret"
	secretByteLen     = 32
)

// Load reads the environment, defaulting PGPort to "5432", and
// auto-generating+persisting a server secret on first run if one is
// neither set in the environment nor already on disk.
func Load() (*Config, error) {
	cfg := &Config{
		PGHost:         os.Getenv(envPGHost),
		PGPort:         orDefault(os.Getenv(envPGPort), "5432"),
		PGDatabase:     os.Getenv(envPGDatabase),
		PGUser:         os.Getenv(envPGUser),
		PGPassword:     os.Getenv(envPGPassword),
		BuildRoot:      os.Getenv(envBuildRoot),
		PythonOverride: os.Getenv(envPython),
		TileserverURL:  os.Getenv(envTileserver),
		ServerSecret:   os.Getenv(envSecret),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if cfg.ServerSecret == "" {
		secret, err := loadOrCreateSecret(cfg.BuildRoot)
		if err != nil {
			return nil, fmt.Errorf("resolving server secret: %w", err)
		}
		cfg.ServerSecret = secret
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

var validatorInst = validator.New()

func validate(cfg *Config) error {
	// BuildRoot must be set; beyond that only the validator tags are
	// checked, and whether the directory exists is not.
	if cfg.BuildRoot == "" {
		return fmt.Errorf("%w: %s", ErrMissingEnv, envBuildRoot)
	}
	if err := validatorInst.Struct(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// loadOrCreateSecret reads <buildRoot>/install/secret, creating it with a
// fresh random value if absent. Persisted so restarts of server mode
// reuse the same secret (spec.md §6: "auto-generated and persisted on
// first run").
func loadOrCreateSecret(buildRoot string) (string, error) {
	path := filepath.Join(buildRoot, secretFileRelPath)

	if data, err := os.ReadFile(path); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	raw := make([]byte, secretByteLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	secret := hex.EncodeToString(raw)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("creating install dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return secret, nil
}

// ConnString builds a libpq-style connection string for pgxpool.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// Directories are the fixed build-root subpaths sitegraph manages.
func (c *Config) Directories() []string {
	return []string{
		filepath.Join(c.BuildRoot, "downloads"),
		filepath.Join(c.BuildRoot, "downloads", "osm"),
		filepath.Join(c.BuildRoot, "cache"),
		filepath.Join(c.BuildRoot, "logs"),
		filepath.Join(c.BuildRoot, "output"),
		filepath.Join(c.BuildRoot, "output", "layers"),
		filepath.Join(c.BuildRoot, "tileserver"),
		filepath.Join(c.BuildRoot, "install"),
	}
}

// DownloadsDir is where download/extract/run/concatenate executors
// place fetched and intermediate files.
func (c *Config) DownloadsDir() string { return filepath.Join(c.BuildRoot, "downloads") }

// OSMDir holds the shared OSM extract, merged config, and runner output.
func (c *Config) OSMDir() string { return filepath.Join(c.BuildRoot, "downloads", "osm") }

// OutputDir is where the output executor writes final encoded layers.
func (c *Config) OutputDir() string { return filepath.Join(c.BuildRoot, "output", "layers") }

// EnsureDirectories creates every managed directory under BuildRoot.
func (c *Config) EnsureDirectories() error {
	for _, dir := range c.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
