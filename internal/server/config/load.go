package config

import (
	"github.com/yndnr/tokgate/internal/infra/confloader"
)

// Load reads path (optional) and the TOKGATE_ environment over the defaults.
// The result is not verified; call Verify before use.
func Load(path string) (*ServerConfig, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with overrides keyed by dotted path, applied last.
// Empty string values are skipped.
func LoadWith(path string, overrides map[string]any) (*ServerConfig, error) {
	cfg := Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
