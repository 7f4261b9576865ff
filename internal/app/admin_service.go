package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
)

// CredentialChecker decides whether an admin password is valid. The
// decision point is server-side; transports only ever see the result.
type CredentialChecker interface {
	Verify(ctx context.Context, password string) error
}

// BcryptChecker verifies passwords against a stored bcrypt hash.
type BcryptChecker struct {
	hash []byte
}

func NewBcryptChecker(hash string) *BcryptChecker {
	return &BcryptChecker{hash: []byte(hash)}
}

func (c *BcryptChecker) Verify(_ context.Context, password string) error {
	if len(c.hash) == 0 {
		return domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
		return domain.ErrInvalidCredentials
	}
	return nil
}

// AdminService gates the admin panel: rate-limited login, expiring
// bearer sessions.
type AdminService struct {
	creds       CredentialChecker
	clock       clock.Clock
	sessionTTL  time.Duration
	maxAttempts int
	lockout     time.Duration
	logger      zerolog.Logger

	mu          sync.Mutex
	sessions    map[string]time.Time
	attempts    int
	lockedUntil time.Time
}

const (
	defaultSessionTTL   = 30 * time.Minute
	defaultMaxAttempts  = 5
	defaultLoginLockout = 5 * time.Minute
)

type AdminServiceOption func(*AdminService)

// WithSessionTTL overrides how long an admin session stays valid.
func WithSessionTTL(d time.Duration) AdminServiceOption {
	return func(s *AdminService) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithLoginPolicy overrides the failed-attempt limit and lockout window.
func WithLoginPolicy(maxAttempts int, lockout time.Duration) AdminServiceOption {
	return func(s *AdminService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if lockout > 0 {
			s.lockout = lockout
		}
	}
}

func NewAdminService(creds CredentialChecker, clk clock.Clock, logger zerolog.Logger, opts ...AdminServiceOption) *AdminService {
	svc := &AdminService{
		creds:       creds,
		clock:       clk,
		sessionTTL:  defaultSessionTTL,
		maxAttempts: defaultMaxAttempts,
		lockout:     defaultLoginLockout,
		logger:      logger.With().Str("component", "admin").Logger(),
		sessions:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Session is an authenticated admin session token with its deadline.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Login verifies the password and issues a session. Repeated failures
// lock the login for the configured window.
func (s *AdminService) Login(ctx context.Context, password string) (Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	if now.Before(s.lockedUntil) {
		s.mu.Unlock()
		return Session{}, domain.ErrLoginLocked
	}
	s.mu.Unlock()

	if err := s.creds.Verify(ctx, password); err != nil {
		s.mu.Lock()
		s.attempts++
		if s.attempts >= s.maxAttempts {
			s.lockedUntil = now.Add(s.lockout)
			s.attempts = 0
			s.logger.Warn().Time("until", s.lockedUntil).Msg("admin login locked")
		}
		s.mu.Unlock()
		return Session{}, err
	}

	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	expires := now.Add(s.sessionTTL)

	s.mu.Lock()
	s.attempts = 0
	s.lockedUntil = time.Time{}
	s.sessions[token] = expires
	s.mu.Unlock()

	s.logger.Info().Time("expires_at", expires).Msg("admin logged in")
	return Session{Token: token, ExpiresAt: expires}, nil
}

// Authenticate validates a session token, pruning it once expired.
func (s *AdminService) Authenticate(_ context.Context, token string) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.sessions[token]
	if !ok {
		return domain.ErrSessionInvalid
	}
	if !expires.After(now) {
		delete(s.sessions, token)
		return domain.ErrSessionInvalid
	}
	return nil
}

// Logout discards the session. Unknown tokens are a no-op.
func (s *AdminService) Logout(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
