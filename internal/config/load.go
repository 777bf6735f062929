package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
//
// A .env file in the working directory is applied to the process environment
// first so api.token_env can be satisfied without exporting secrets.
func Load(explicitPath string) (Loaded, error) {
	envWarnings := loadDotEnv(".env")

	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := base
			resolveToken(&cfg)
			return Loaded{
				Path:   resolvedPath,
				Config: cfg,
				Warnings: append(envWarnings, Warning{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}),
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	resolveToken(&cfg)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: append(envWarnings, warnings...),
		Exists:   true,
	}, nil
}

// loadDotEnv applies path to the environment without overriding existing variables.
func loadDotEnv(path string) []Warning {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return []Warning{{Message: fmt.Sprintf("ignoring %s: %v", path, err)}}
}

// resolveToken fills api.token from the configured environment variable.
func resolveToken(cfg *Config) {
	if strings.TrimSpace(cfg.API.Token) != "" {
		return
	}
	name := strings.TrimSpace(cfg.API.TokenEnv)
	if name == "" {
		return
	}
	cfg.API.Token = strings.TrimSpace(os.Getenv(name))
}
