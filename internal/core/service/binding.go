package service

import (
	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/pkg/token"
)

// IssueSession creates a new session signed with secret.
//
// It fails only when the system random source is unavailable.
func IssueSession(secret domain.Secret) (*domain.Session, error) {
	tok, err := token.Generate()
	if err != nil {
		return nil, domain.ErrInternalServer.WithDetails("generate session token").WithCause(err)
	}
	return &domain.Session{
		Token:     tok,
		Signature: token.Sign(secret[:], tok),
	}, nil
}

// VerifySession checks that session was issued under secret.
//
// Returns ErrInvalidSession for a nil session, empty fields, a signature
// that is not valid Base64, or a signature mismatch.
func VerifySession(session *domain.Session, secret domain.Secret) error {
	if session == nil || session.Token == "" || session.Signature == "" {
		return domain.ErrInvalidSession.WithDetails("missing token or signature")
	}
	if !token.VerifySignature(secret[:], session.Token, session.Signature) {
		return domain.ErrInvalidSession.WithDetails("signature mismatch")
	}
	return nil
}

// SessionBinder issues and verifies sessions for a single connection.
//
// It holds its own copy of the connection secret and has no other state,
// so one binder may be shared by every stream of the connection.
type SessionBinder struct {
	secret domain.Secret
}

// NewSessionBinder creates a binder for the connection that exported secret.
func NewSessionBinder(secret domain.Secret) *SessionBinder {
	return &SessionBinder{secret: secret}
}

// Issue creates a session valid on this connection only.
func (b *SessionBinder) Issue() (*domain.Session, error) {
	return IssueSession(b.secret)
}

// Verify checks a presented session against this connection's secret.
func (b *SessionBinder) Verify(session *domain.Session) error {
	return VerifySession(session, b.secret)
}
