package config

import (
	"slices"
	"strings"
)

const mask = "****"

// Sanitize returns a copy of cfg that is safe to log or print.
//
// The upload encryption key is replaced entirely. Argon2 password hashes
// keep their PHC parameter prefix so operators can still see the cost
// settings; any other hash is replaced entirely.
func Sanitize(cfg *ServerConfig) *ServerConfig {
	out := *cfg
	out.Server.Metrics.AllowedNetworks = slices.Clone(cfg.Server.Metrics.AllowedNetworks)

	if out.Storage.UploadEncryptionKey != "" {
		out.Storage.UploadEncryptionKey = mask
	}
	if out.Security.AdminPasswordHash != "" {
		out.Security.AdminPasswordHash = maskPasswordHash(out.Security.AdminPasswordHash)
	}
	return &out
}

// maskPasswordHash keeps "$argon2id$v=19$m=...,t=...,p=..." and drops the
// salt and digest segments.
func maskPasswordHash(h string) string {
	if !strings.HasPrefix(h, "$argon2") {
		return mask
	}
	parts := strings.Split(h, "$")
	if len(parts) != 6 {
		return mask
	}
	return strings.Join(append(parts[:4], mask, mask), "$")
}
