package service

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/tokgate/internal/core/domain"
	"github.com/yndnr/tokgate/pkg/cmap"
)

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	// LoginRateLimit is the sustained number of login attempts per second
	// allowed from one peer host. Zero disables throttling.
	LoginRateLimit float64

	// LoginBurst is the number of attempts a peer may make at once.
	LoginBurst int
}

// DefaultAuthServiceConfig returns default configuration.
func DefaultAuthServiceConfig() *AuthServiceConfig {
	return &AuthServiceConfig{
		LoginRateLimit: 5,
		LoginBurst:     10,
	}
}

// AuthService checks login attempts and hands out connection-bound session binders.
type AuthService struct {
	checker  CredentialChecker
	limit    rate.Limit
	burst    int
	limiters *cmap.Map[*rate.Limiter]
}

// NewAuthService creates a new AuthService.
func NewAuthService(checker CredentialChecker, cfg *AuthServiceConfig) *AuthService {
	if cfg == nil {
		cfg = DefaultAuthServiceConfig()
	}
	burst := cfg.LoginBurst
	if burst <= 0 {
		burst = 1
	}

	return &AuthService{
		checker:  checker,
		limit:    rate.Limit(cfg.LoginRateLimit),
		burst:    burst,
		limiters: cmap.New[*rate.Limiter](),
	}
}

// Authenticate checks login on behalf of peerHost and, on success, returns a
// binder for the connection that exported secret together with a freshly
// issued session.
//
// Errors: ErrRateLimited when peerHost exceeded its attempt budget,
// ErrAuthenticationFailed when the credentials are rejected.
func (s *AuthService) Authenticate(ctx context.Context, peerHost string, login *domain.Login, secret domain.Secret) (*SessionBinder, *domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !s.allow(peerHost) {
		return nil, nil, domain.ErrRateLimited.WithDetails("login attempts exceeded for " + peerHost)
	}
	if login == nil || s.checker == nil || !s.checker.Check(login.Username, login.Password) {
		return nil, nil, domain.ErrAuthenticationFailed.WithDetails("wrong username or password")
	}

	binder := NewSessionBinder(secret)
	session, err := binder.Issue()
	if err != nil {
		return nil, nil, err
	}
	return binder, session, nil
}

func (s *AuthService) allow(peerHost string) bool {
	if s.limit <= 0 {
		return true
	}
	l := s.limiters.GetOrCreate(peerHost, func() *rate.Limiter {
		return rate.NewLimiter(s.limit, s.burst)
	})
	return l.Allow()
}

// PruneLimiters drops the limiters of peers whose bucket has refilled,
// returning how many were removed.
func (s *AuthService) PruneLimiters(now time.Time) int {
	pruned := 0
	s.limiters.Range(func(host string, l *rate.Limiter) bool {
		if l.TokensAt(now) >= float64(s.burst) {
			s.limiters.Delete(host)
			pruned++
		}
		return true
	})
	return pruned
}

// TrackedPeers returns the number of peers with a live limiter.
func (s *AuthService) TrackedPeers() int {
	return s.limiters.Len()
}
