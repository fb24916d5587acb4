package config

import "time"

// CLIConfig is the configuration for tokgate-cli.
type CLIConfig struct {
	// Server is the QUIC address of the tokgate server.
	Server string `koanf:"server"`

	// CAFile is a PEM or DER certificate (or a directory of them) trusted
	// for the server certificate. Empty uses the system roots.
	CAFile string `koanf:"ca_file"`

	// ServerName is verified against the server certificate.
	ServerName string `koanf:"server_name"`

	// Username is the login name. The password is never stored.
	Username string `koanf:"username"`

	Output  string        `koanf:"output"` // table, json, yaml, raw
	Timeout time.Duration `koanf:"timeout"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:     "127.0.0.1:4843",
		ServerName: "localhost",
		Username:   "admin",
		Output:     "table",
		Timeout:    10 * time.Second,
	}
}
