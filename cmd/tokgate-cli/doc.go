// Package main provides the entry point for tokgate-cli.
//
// The CLI talks the tokgate protocol over QUIC:
//
//   - login-get: log in, then fetch a file on the authenticated stream
//   - get: anonymous fetch
//   - upload, ping: unidirectional stream and datagram round trips
//   - hash-password: produce security.admin_password_hash values
//
// Usage:
//
//	tokgate-cli --ca-file ca.pem login-get -p admin_password sample.json
//	tokgate-cli -o json ping
package main
