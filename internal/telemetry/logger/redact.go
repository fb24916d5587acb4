package logger

import (
	"log/slog"
	"strings"
)

// Request-line prefixes whose remainder is a credential.
var sensitiveValuePrefixes = []string{
	"Authentication Bearer ",
}

// Attribute keys whose values are always redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"signature",
	"session",
	"key",
	"credential",
	"bearer",
}

const redactedValue = "***REDACTED***"

// redactSensitive redacts credential values from one attribute.
// Groups are walked recursively.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, prefix+redactedValue)
			}
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactLine masks the credential part of a request line so it can be
// logged. Lines without a credential are returned unchanged.
func RedactLine(line string) string {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(line, prefix) {
			return prefix + redactedValue
		}
	}
	return line
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
