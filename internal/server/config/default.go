// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultQUICAddr      = "127.0.0.1:4843"
	DefaultMetricsAddr   = "127.0.0.1:9843"
	DefaultIdleTimeout   = 30 * time.Second
	DefaultMaxStreams    = 100
	DefaultMaxFileSize   = 16 << 20
	DefaultMaxUploadSize = 64 << 10

	DefaultServeDir             = "/var/lib/tokgate-server/files"
	DefaultUploadDir            = "/var/lib/tokgate-server/uploads"
	DefaultUploadMemoryCapacity = 1024
	DefaultUploadGCInterval     = 10 * time.Minute

	DefaultAdminUsername  = "admin"
	DefaultLoginRateLimit = 5
	DefaultLoginBurst     = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
//
// The administrator password hash has no default; a server without one
// rejects every login.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			QUIC: QUICConfig{
				Addr:          DefaultQUICAddr,
				IdleTimeout:   DefaultIdleTimeout,
				MaxStreams:    DefaultMaxStreams,
				MaxFileSize:   DefaultMaxFileSize,
				MaxUploadSize: DefaultMaxUploadSize,
			},
			Metrics: MetricsConfig{
				Enabled:         false,
				Addr:            DefaultMetricsAddr,
				AllowedNetworks: []string{"127.0.0.0/8", "::1/128"},
			},
		},
		Storage: StorageSection{
			ServeDir:             DefaultServeDir,
			UploadBackend:        UploadBackendMemory,
			UploadDir:            DefaultUploadDir,
			UploadMemoryCapacity: DefaultUploadMemoryCapacity,
			UploadGCInterval:     DefaultUploadGCInterval,
		},
		Security: SecuritySection{
			AdminUsername:  DefaultAdminUsername,
			PasswordScheme: PasswordSchemeSHA256,
			LoginRateLimit: DefaultLoginRateLimit,
			LoginBurst:     DefaultLoginBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
