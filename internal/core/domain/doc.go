// Package domain defines the core domain models for tokgate.
//
// It contains the credential types exchanged on the wire (Login,
// Session), the connection-bound Secret they are signed with, the
// connection lifecycle states and the structured error taxonomy
// shared by the service and server layers.
//
// Domain types carry no transport or storage dependencies.
package domain
