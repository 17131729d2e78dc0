package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when Load is given no path.
var DefaultPaths = []string{"glmtools.yaml", "glmtools.yml", "glmtools.toml"}

// Environment variables that override file settings.
const (
	EnvBaseURL = "GLMTOOLS_BASE_URL"
	EnvModel   = "GLMTOOLS_MODEL"
	EnvAPIKey  = "GLMTOOLS_API_KEY"
	EnvAddr    = "GLMTOOLS_ADDR"
)

// Load reads the configuration at path, or the first of DefaultPaths that exists. With no path
// and no default file, defaults are used. A .env file next to the configuration is loaded into
// the environment first; variables already set are kept.
func Load(path string) (*Config, error) {
	configPath, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	dir := "."
	if configPath != "" {
		dir = filepath.Dir(configPath)
	}
	if envPath := filepath.Join(dir, ".env"); fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(data, filepath.Ext(configPath)); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".yml" or ".toml"). Unknown keys are
// rejected. Defaults are not applied.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse config: unknown key %s", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return &cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if !fileExists(path) {
			return "", fmt.Errorf("config not found: %s", path)
		}
		return path, nil
	}
	for _, p := range DefaultPaths {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
}
