package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/yndnr/tokgate/internal/infra/confloader"
)

// EnvPrefix is the environment prefix of profile overrides.
const EnvPrefix = "TOKGATE_CLI_"

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tokgate", "cli.yaml")
	}
	return filepath.Join(homeDir, ".tokgate", "cli.yaml")
}

// Load reads the profile at path over the defaults, then applies
// TOKGATE_CLI_* variables. A missing file is not an error.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()
	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(EnvPrefix),
		confloader.WithOptionalFile(path),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cli config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	doc := map[string]any{
		"server":      cfg.Server,
		"server_name": cfg.ServerName,
		"username":    cfg.Username,
		"output":      cfg.Output,
		"timeout":     cfg.Timeout.String(),
	}
	if cfg.CAFile != "" {
		doc["ca_file"] = cfg.CAFile
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cli config: %w", err)
	}
	return os.Rename(tmp, path)
}
