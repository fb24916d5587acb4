// Package main provides the entry point for tokgate-server.
//
// The server accepts QUIC connections and serves:
//
//   - login and session-bound file requests on bidirectional streams
//   - anonymous GETs when server.quic.allow_anonymous is set
//   - uploads on unidirectional streams
//   - datagram pings, answered with "ack"
//
// Usage:
//
//	tokgate-server [flags]
//	tokgate-server -config /etc/tokgate/server.yaml
//	tokgate-server -config server.yaml -addr :4843 -log-level debug
//
// Configuration comes from the YAML file, then TOKGATE_* environment
// variables, then the -addr and -log-level flags. When
// server.metrics.enabled is set, an HTTP endpoint serves /metrics, /health,
// /ready, /status and /loglevel to the allowed networks. The log level is reapplied when the file changes, and the TLS
// key pair is reloaded when its files change.
package main
