// Package command provides CLI command definitions for tokgate-cli.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags, profile and dialing
//   - fetch.go: login-get and anonymous get
//   - transfer.go: upload and ping
//   - password.go: hash-password for the server configuration
//   - config.go: CLI profile and server config checks
//
// Commands parse flags, dial the server through the client package and
// render results with the output package.
package command
