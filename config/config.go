// Package config loads the project configuration from .colship.yml and
// applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up at the collection root.
const FileName = ".colship.yml"

// Environment variables that override file values.
const (
	EnvHubURL   = "COLSHIP_HUB_URL"
	EnvTokenVar = "COLSHIP_TOKEN_ENV"
)

// Config is the project configuration.
type Config struct {
	// Collection configures the collection source tree.
	Collection struct {
		// Dir is the collection root. Defaults to ".".
		Dir string `yaml:"dir"`
		// Output receives built archives. Defaults to "<dir>/dist".
		Output string `yaml:"output"`
		// Requirements locates the requirements file. Defaults to
		// "<dir>/requirements.yml".
		Requirements string `yaml:"requirements"`
	} `yaml:"collection"`

	// Hub configures the release hosting service.
	Hub struct {
		// URL is the API root including the repository path.
		URL string `yaml:"url"`
		// TokenEnv names the environment variable holding the bearer
		// token. The token itself never lives in the file.
		TokenEnv string `yaml:"token_env"`
	} `yaml:"hub"`

	// Release configures release triggering.
	Release struct {
		// TagPattern is the glob a tag must match to trigger a
		// release. Defaults to "v*".
		TagPattern string `yaml:"tag_pattern"`
	} `yaml:"release"`

	// Inventory configures the CMDB inventory source.
	Inventory struct {
		// URL is the CMDB portal endpoint serving the host list.
		URL string `yaml:"url"`
		// TokenEnv names the environment variable holding the CMDB
		// bearer token.
		TokenEnv string `yaml:"token_env"`
	} `yaml:"inventory"`

	// History configures run history persistence.
	History struct {
		// Path is the sqlite database location. Defaults to
		// ".colship-history.db".
		Path string `yaml:"path"`
	} `yaml:"history"`
}

// defaultConfig is written by Init and parsed as the baseline before a
// project file is merged over it.
const defaultConfig = `# colship project configuration

collection:
  # Collection root, relative to this file.
  dir: .
  # Where built archives land.
  output: dist
  # Requirements file checked before building.
  requirements: requirements.yml

hub:
  # Release host API root, e.g. https://api.example.com/repos/acme/collection
  url: ""
  # Name of the environment variable holding the bearer token.
  token_env: COLSHIP_HUB_TOKEN

release:
  # Tags matching this glob trigger a release.
  tag_pattern: "v*"

inventory:
  # CMDB portal endpoint serving the host list.
  url: ""
  # Name of the environment variable holding the CMDB bearer token.
  token_env: CMDB_API_BEARER_TOKEN

history:
  # Local run history database.
  path: .colship-history.db
`

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	// The default document is a compile-time constant; it always parses.
	yaml.Unmarshal([]byte(defaultConfig), &cfg)
	return &cfg
}

// Load reads the configuration file at dir, fills in defaults and applies
// environment overrides. A missing file yields the defaults.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.resolvePaths(dir)
	cfg.applyEnv()
	return cfg, nil
}

// resolvePaths anchors relative file paths at the directory holding the
// configuration file, so running with -C from elsewhere still operates on
// the project's tree.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{
		&c.Collection.Dir,
		&c.Collection.Output,
		&c.Collection.Requirements,
		&c.History.Path,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Collection.Dir == "" {
		c.Collection.Dir = "."
	}
	if c.Collection.Output == "" {
		c.Collection.Output = filepath.Join(c.Collection.Dir, "dist")
	}
	if c.Collection.Requirements == "" {
		c.Collection.Requirements = filepath.Join(c.Collection.Dir, "requirements.yml")
	}
	if c.Release.TagPattern == "" {
		c.Release.TagPattern = "v*"
	}
	if c.History.Path == "" {
		c.History.Path = ".colship-history.db"
	}
	if c.Hub.TokenEnv == "" {
		c.Hub.TokenEnv = "COLSHIP_HUB_TOKEN"
	}
	if c.Inventory.TokenEnv == "" {
		c.Inventory.TokenEnv = "CMDB_API_BEARER_TOKEN"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHubURL); v != "" {
		c.Hub.URL = v
	}
	if v := os.Getenv(EnvTokenVar); v != "" {
		c.Hub.TokenEnv = v
	}
}

// Token resolves the hub bearer token from the configured environment
// variable.
func (c *Config) Token() string {
	return os.Getenv(c.Hub.TokenEnv)
}

// Init writes the commented default configuration file into dir. It refuses
// to overwrite an existing file.
func Init(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
