// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for tokgate-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	QUIC    QUICConfig    `koanf:"quic"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// QUICConfig configures the protocol listener.
type QUICConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// IdleTimeout closes a connection after this long without activity.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// KeepAlive is the keep-alive period. Zero disables keep-alives.
	KeepAlive time.Duration `koanf:"keep_alive"`

	// MaxStreams bounds concurrently open incoming streams per connection.
	MaxStreams int64 `koanf:"max_streams"`

	// AllowAnonymous answers a single GET on a stream without login.
	AllowAnonymous bool `koanf:"allow_anonymous"`

	// MaxFileSize is the largest file served, in bytes. Zero means no limit.
	MaxFileSize int64 `koanf:"max_file_size"`

	// MaxUploadSize is the largest accepted upload, in bytes.
	MaxUploadSize int `koanf:"max_upload_size"`
}

// MetricsConfig configures the HTTP endpoint serving /metrics, health
// probes and runtime status.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`

	// AllowedNetworks lists the CIDR prefixes allowed to reach the endpoint.
	// Empty allows everyone.
	AllowedNetworks []string `koanf:"allowed_networks"`
}

// Upload backends.
const (
	UploadBackendMemory = "memory"
	UploadBackendBadger = "badger"
)

// StorageSection configures served files and upload retention.
type StorageSection struct {
	// ServeDir is the directory files are served from.
	ServeDir string `koanf:"serve_dir"`

	// UploadBackend selects where uploads are kept: "memory" or "badger".
	UploadBackend string `koanf:"upload_backend"`

	// UploadDir is the badger directory. Required for the badger backend.
	UploadDir string `koanf:"upload_dir"`

	// UploadMemoryCapacity is the ring size of the memory backend.
	UploadMemoryCapacity int `koanf:"upload_memory_capacity"`

	// UploadGCInterval is the badger value-log GC period.
	UploadGCInterval time.Duration `koanf:"upload_gc_interval"`

	// UploadEncryptionKey enables at-rest encryption of badger records.
	UploadEncryptionKey string `koanf:"upload_encryption_key"`
}

// Password schemes for SecuritySection.AdminPasswordHash.
const (
	PasswordSchemeSHA256   = "sha256"
	PasswordSchemeArgon2id = "argon2id"
)

// SecuritySection configures the administrator account and login throttling.
type SecuritySection struct {
	AdminUsername     string `koanf:"admin_username"`
	AdminPasswordHash string `koanf:"admin_password_hash"`

	// PasswordScheme is "sha256" (Base64 SHA-256) or "argon2id" (PHC string).
	PasswordScheme string `koanf:"password_scheme"`

	// LoginRateLimit is the sustained login attempts per second per peer host.
	// Zero disables throttling.
	LoginRateLimit float64 `koanf:"login_rate_limit"`
	LoginBurst     int     `koanf:"login_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
