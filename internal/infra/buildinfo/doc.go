// Package buildinfo provides build information for tokgate binaries.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/tokgate/internal/infra/buildinfo.Version=v1.0.0"
//
// Values left unset are filled from the module build information embedded
// by the Go toolchain, when available.
package buildinfo
