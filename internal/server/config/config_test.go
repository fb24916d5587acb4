// Package config defines the server configuration structure.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Check server defaults
	if cfg.Server.QUIC.Addr != DefaultQUICAddr {
		t.Errorf("QUIC.Addr = %q, want %q", cfg.Server.QUIC.Addr, DefaultQUICAddr)
	}
	if cfg.Server.QUIC.AllowAnonymous {
		t.Error("anonymous requests should be disabled by default")
	}
	if cfg.Server.QUIC.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want %v", cfg.Server.QUIC.IdleTimeout, DefaultIdleTimeout)
	}
	if cfg.Server.QUIC.MaxUploadSize != DefaultMaxUploadSize {
		t.Errorf("MaxUploadSize = %d, want %d", cfg.Server.QUIC.MaxUploadSize, DefaultMaxUploadSize)
	}
	if cfg.Server.Metrics.Enabled {
		t.Error("metrics should be disabled by default")
	}

	// Check storage defaults
	if cfg.Storage.UploadBackend != UploadBackendMemory {
		t.Errorf("UploadBackend = %q, want %q", cfg.Storage.UploadBackend, UploadBackendMemory)
	}
	if cfg.Storage.UploadMemoryCapacity != DefaultUploadMemoryCapacity {
		t.Errorf("UploadMemoryCapacity = %d", cfg.Storage.UploadMemoryCapacity)
	}

	// Check security defaults
	if cfg.Security.AdminUsername != DefaultAdminUsername {
		t.Errorf("AdminUsername = %q", cfg.Security.AdminUsername)
	}
	if cfg.Security.PasswordScheme != PasswordSchemeSHA256 {
		t.Errorf("PasswordScheme = %q", cfg.Security.PasswordScheme)
	}
	if cfg.Security.AdminPasswordHash != "" {
		t.Error("AdminPasswordHash must have no default")
	}

	// Check log defaults
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
}

func TestSanitize(t *testing.T) {
	cfg := &ServerConfig{
		Storage: StorageSection{
			UploadEncryptionKey: "super-secret-key-1234567890",
		},
		Security: SecuritySection{
			AdminPasswordHash: "bUUlwqIfm+HMqeQfOqQC4HZe5fzD5/6jShabFzCuOG4=",
		},
	}
	cfg.Server.Metrics.AllowedNetworks = []string{"10.0.0.0/8"}

	sanitized := Sanitize(cfg)

	if cfg.Storage.UploadEncryptionKey != "super-secret-key-1234567890" {
		t.Error("Original config should not be modified")
	}
	if sanitized.Storage.UploadEncryptionKey != mask {
		t.Errorf("UploadEncryptionKey = %q, want %q", sanitized.Storage.UploadEncryptionKey, mask)
	}
	if sanitized.Security.AdminPasswordHash != mask {
		t.Errorf("AdminPasswordHash = %q, want %q", sanitized.Security.AdminPasswordHash, mask)
	}

	sanitized.Server.Metrics.AllowedNetworks[0] = "0.0.0.0/0"
	if cfg.Server.Metrics.AllowedNetworks[0] != "10.0.0.0/8" {
		t.Error("Sanitize shares AllowedNetworks with the original")
	}
}

func TestSanitize_EmptyKey(t *testing.T) {
	sanitized := Sanitize(&ServerConfig{})

	if sanitized.Storage.UploadEncryptionKey != "" || sanitized.Security.AdminPasswordHash != "" {
		t.Error("Empty secrets should remain empty")
	}
}

func TestMaskPasswordHash(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"bUUlwqIfm+HMqeQfOqQC4HZe5fzD5/6jShabFzCuOG4=", mask},
		{"$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHQ$aGFzaGhhc2g", "$argon2id$v=19$m=65536,t=3,p=2$****$****"},
		{"$argon2id$broken", mask},
	}

	for _, tt := range tests {
		if got := maskPasswordHash(tt.input); got != tt.want {
			t.Errorf("maskPasswordHash(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// validConfig returns a config that passes Verify, backed by files in a
// temporary directory.
func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	dir := t.TempDir()

	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	for _, f := range []string{cert, key} {
		if err := os.WriteFile(f, []byte("pem"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	serve := filepath.Join(dir, "files")
	if err := os.Mkdir(serve, 0750); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Server.QUIC.TLSCertFile = cert
	cfg.Server.QUIC.TLSKeyFile = key
	cfg.Storage.ServeDir = serve
	cfg.Storage.UploadDir = filepath.Join(dir, "uploads")
	cfg.Security.AdminPasswordHash = "bUUlwqIfm+HMqeQfOqQC4HZe5fzD5/6jShabFzCuOG4="
	return cfg
}

func TestVerify_ValidConfig(t *testing.T) {
	if err := Verify(validConfig(t)); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *ServerConfig)
		want   string
	}{
		{"bad quic addr", func(c *ServerConfig) { c.Server.QUIC.Addr = "4843" }, "server.quic.addr"},
		{"missing cert", func(c *ServerConfig) { c.Server.QUIC.TLSCertFile = "" }, "tls_cert_file"},
		{"cert not found", func(c *ServerConfig) { c.Server.QUIC.TLSCertFile = "/nonexistent/cert.pem" }, "tls_cert_file"},
		{"zero idle timeout", func(c *ServerConfig) { c.Server.QUIC.IdleTimeout = 0 }, "idle_timeout"},
		{"keep alive too long", func(c *ServerConfig) { c.Server.QUIC.KeepAlive = time.Minute }, "keep_alive"},
		{"zero streams", func(c *ServerConfig) { c.Server.QUIC.MaxStreams = 0 }, "max_streams"},
		{"zero upload size", func(c *ServerConfig) { c.Server.QUIC.MaxUploadSize = 0 }, "max_upload_size"},
		{"metrics addr conflict", func(c *ServerConfig) {
			c.Server.Metrics.Enabled = true
			c.Server.Metrics.Addr = c.Server.QUIC.Addr
		}, "conflicts"},
		{"bad allowed network", func(c *ServerConfig) {
			c.Server.Metrics.Enabled = true
			c.Server.Metrics.AllowedNetworks = []string{"10.0.0.0/33"}
		}, "allowed_networks"},
		{"missing serve dir", func(c *ServerConfig) { c.Storage.ServeDir = "" }, "serve_dir"},
		{"serve dir not found", func(c *ServerConfig) { c.Storage.ServeDir = "/nonexistent/files" }, "serve_dir"},
		{"unknown backend", func(c *ServerConfig) { c.Storage.UploadBackend = "s3" }, "upload_backend"},
		{"memory with encryption", func(c *ServerConfig) { c.Storage.UploadEncryptionKey = "k" }, "requires the badger backend"},
		{"badger without dir", func(c *ServerConfig) {
			c.Storage.UploadBackend = UploadBackendBadger
			c.Storage.UploadDir = ""
		}, "upload_dir"},
		{"missing username", func(c *ServerConfig) { c.Security.AdminUsername = "" }, "admin_username"},
		{"missing hash", func(c *ServerConfig) { c.Security.AdminPasswordHash = "" }, "admin_password_hash"},
		{"argon2 scheme with sha256 hash", func(c *ServerConfig) { c.Security.PasswordScheme = PasswordSchemeArgon2id }, "PHC"},
		{"unknown scheme", func(c *ServerConfig) { c.Security.PasswordScheme = "md5" }, "password_scheme"},
		{"zero burst", func(c *ServerConfig) { c.Security.LoginBurst = 0 }, "login_burst"},
		{"bad log level", func(c *ServerConfig) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *ServerConfig) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := Verify(cfg)
			if err == nil {
				t.Fatal("Verify() error = nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Verify() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestVerify_CreatesUploadDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.UploadBackend = UploadBackendBadger
	cfg.Storage.UploadDir = filepath.Join(t.TempDir(), "sub", "uploads")

	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := os.Stat(cfg.Storage.UploadDir); os.IsNotExist(err) {
		t.Error("Upload directory should have been created")
	}
}

func TestVerify_ReportsAllProblems(t *testing.T) {
	cfg := validConfig(t)
	cfg.Log.Level = "trace"
	cfg.Security.AdminUsername = ""

	err := Verify(cfg)
	if err == nil {
		t.Fatal("Verify() error = nil")
	}
	for _, want := range []string{"log.level", "admin_username"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Verify() error = %v, missing %q", err, want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokgate.yaml")
	content := `
server:
  quic:
    addr: "0.0.0.0:4843"
    allow_anonymous: true
    idle_timeout: 1m
security:
  password_scheme: argon2id
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TOKGATE_LOG__LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.QUIC.Addr != "0.0.0.0:4843" || !cfg.Server.QUIC.AllowAnonymous {
		t.Errorf("QUIC = %+v", cfg.Server.QUIC)
	}
	if cfg.Server.QUIC.IdleTimeout != time.Minute {
		t.Errorf("IdleTimeout = %v, want 1m", cfg.Server.QUIC.IdleTimeout)
	}
	if cfg.Security.PasswordScheme != PasswordSchemeArgon2id {
		t.Errorf("PasswordScheme = %q", cfg.Security.PasswordScheme)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want env override", cfg.Log.Level)
	}
	// untouched keys keep their defaults
	if cfg.Server.QUIC.MaxStreams != DefaultMaxStreams {
		t.Errorf("MaxStreams = %d, want default", cfg.Server.QUIC.MaxStreams)
	}
	if cfg.Security.AdminUsername != DefaultAdminUsername {
		t.Errorf("AdminUsername = %q, want default", cfg.Security.AdminUsername)
	}
}
