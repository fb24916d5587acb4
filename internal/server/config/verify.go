// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
)

// Verify validates the configuration. All problems found are returned
// joined in a single error.
func Verify(cfg *ServerConfig) error {
	return errors.Join(
		verifyServer(&cfg.Server),
		verifyStorage(&cfg.Storage),
		verifySecurity(&cfg.Security),
		verifyLog(&cfg.Log),
	)
}

func verifyServer(cfg *ServerSection) error {
	var errs []error

	q := &cfg.QUIC
	if _, _, err := net.SplitHostPort(q.Addr); err != nil {
		errs = append(errs, fmt.Errorf("server.quic.addr %q: %w", q.Addr, err))
	}
	if q.TLSCertFile == "" || q.TLSKeyFile == "" {
		errs = append(errs, errors.New("server.quic.tls_cert_file and server.quic.tls_key_file are required"))
	} else {
		errs = append(errs, fileExists("server.quic.tls_cert_file", q.TLSCertFile))
		errs = append(errs, fileExists("server.quic.tls_key_file", q.TLSKeyFile))
	}
	if q.IdleTimeout <= 0 {
		errs = append(errs, errors.New("server.quic.idle_timeout must be positive"))
	}
	if q.KeepAlive < 0 || (q.KeepAlive > 0 && q.KeepAlive >= q.IdleTimeout) {
		errs = append(errs, errors.New("server.quic.keep_alive must be shorter than idle_timeout"))
	}
	if q.MaxStreams < 1 {
		errs = append(errs, errors.New("server.quic.max_streams must be at least 1"))
	}
	if q.MaxFileSize < 0 {
		errs = append(errs, errors.New("server.quic.max_file_size must not be negative"))
	}
	if q.MaxUploadSize < 1 {
		errs = append(errs, errors.New("server.quic.max_upload_size must be at least 1"))
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			errs = append(errs, fmt.Errorf("server.metrics.addr %q: %w", cfg.Metrics.Addr, err))
		} else if cfg.Metrics.Addr == q.Addr {
			errs = append(errs, errors.New("server.metrics.addr conflicts with server.quic.addr"))
		}
		for _, n := range cfg.Metrics.AllowedNetworks {
			if _, err := netip.ParsePrefix(n); err != nil {
				errs = append(errs, fmt.Errorf("server.metrics.allowed_networks: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

func verifyStorage(cfg *StorageSection) error {
	var errs []error

	if cfg.ServeDir == "" {
		errs = append(errs, errors.New("storage.serve_dir is required"))
	} else if fi, err := os.Stat(cfg.ServeDir); err != nil {
		errs = append(errs, fmt.Errorf("storage.serve_dir: %w", err))
	} else if !fi.IsDir() {
		errs = append(errs, fmt.Errorf("storage.serve_dir %s is not a directory", cfg.ServeDir))
	}

	switch cfg.UploadBackend {
	case UploadBackendMemory:
		if cfg.UploadMemoryCapacity < 1 {
			errs = append(errs, errors.New("storage.upload_memory_capacity must be at least 1"))
		}
		if cfg.UploadEncryptionKey != "" {
			errs = append(errs, errors.New("storage.upload_encryption_key requires the badger backend"))
		}
	case UploadBackendBadger:
		if cfg.UploadDir == "" {
			errs = append(errs, errors.New("storage.upload_dir is required for the badger backend"))
		} else if err := os.MkdirAll(cfg.UploadDir, 0750); err != nil {
			errs = append(errs, errors.New("cannot create upload directory: "+err.Error()))
		}
		if cfg.UploadGCInterval < 0 {
			errs = append(errs, errors.New("storage.upload_gc_interval must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.upload_backend %q: want %s or %s",
			cfg.UploadBackend, UploadBackendMemory, UploadBackendBadger))
	}

	return errors.Join(errs...)
}

func verifySecurity(cfg *SecuritySection) error {
	var errs []error

	if cfg.AdminUsername == "" {
		errs = append(errs, errors.New("security.admin_username is required"))
	}
	switch cfg.PasswordScheme {
	case PasswordSchemeSHA256:
		if cfg.AdminPasswordHash == "" {
			errs = append(errs, errors.New("security.admin_password_hash is required"))
		}
	case PasswordSchemeArgon2id:
		if !strings.HasPrefix(cfg.AdminPasswordHash, "$argon2id$") {
			errs = append(errs, errors.New("security.admin_password_hash must be an argon2id PHC string"))
		}
	default:
		errs = append(errs, fmt.Errorf("security.password_scheme %q: want %s or %s",
			cfg.PasswordScheme, PasswordSchemeSHA256, PasswordSchemeArgon2id))
	}
	if cfg.LoginRateLimit < 0 {
		errs = append(errs, errors.New("security.login_rate_limit must not be negative"))
	}
	if cfg.LoginRateLimit > 0 && cfg.LoginBurst < 1 {
		errs = append(errs, errors.New("security.login_burst must be at least 1"))
	}

	return errors.Join(errs...)
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q: want debug, info, warn or error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q: want json or text", cfg.Format)
	}
	return nil
}

func fileExists(key, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s: %s is a directory", key, path)
	}
	return nil
}
