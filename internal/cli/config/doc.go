// Package config holds the tokgate-cli profile: connection defaults read
// from ~/.tokgate/cli.yaml and TOKGATE_CLI_* environment variables.
//
// Values given on the command line always win over the profile.
package config
