// Package service provides the domain services of tokgate.
//
// Services contain the protocol-independent logic and define interfaces
// for the capabilities they depend on, allowing for dependency injection
// and testability.
//
// This package contains:
//
//   - SessionBinder: issues and verifies session credentials bound to one
//     connection's exported secret (stateless, no storage)
//   - AuthService: checks login credentials through an injected
//     CredentialChecker and throttles attempts per peer
//   - StaticCredentials / Argon2Credentials: CredentialChecker backends
//     for the single administrator account
//
// Services are safe for concurrent use.
package service
