// Package tlsroots provides TLS certificate management for tokgate.
//
// This package handles TLS certificate loading and management:
//
//   - roots.go: Trusted roots for clients (system pool plus PEM or DER files)
//   - watcher.go: Server key pair hot-reload via fsnotify
//
// Both produce TLS 1.3 configurations; the transport adds its ALPN.
package tlsroots
