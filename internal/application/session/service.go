package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unifiro-api/internal/domain"
)

type Store interface {
	// GetByIdentifier looks an account up by email or mobile.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error)
	Get(ctx context.Context, accountID string) (*domain.Account, error)
}

type PasswordVerifier interface {
	Verify(plaintext, digest string) bool
}

// TokenCodec signs and parses session credentials. Parse fails on a bad
// signature or an expired credential.
type TokenCodec interface {
	Sign(claims domain.SessionClaims) (string, error)
	Parse(token string) (*domain.SessionClaims, error)
}

type LoginInput struct {
	Identifier string
	Password   string
	RememberMe bool
}

type LoginResult struct {
	Token   string
	TTL     time.Duration
	Account *domain.Account
}

type Deps struct {
	Kind          domain.AccountKind
	Store         Store
	Verifier      PasswordVerifier
	Tokens        TokenCodec
	SessionTTL    time.Duration
	RememberMeTTL time.Duration
	Now           func() time.Time
}

// Service logs accounts of one kind in and checks their credentials.
type Service struct {
	kind        domain.AccountKind
	store       Store
	verifier    PasswordVerifier
	tokens      TokenCodec
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		kind:        d.Kind,
		store:       d.Store,
		verifier:    d.Verifier,
		tokens:      d.Tokens,
		ttl:         d.SessionTTL,
		rememberTTL: d.RememberMeTTL,
		now:         d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ttl <= 0 {
		s.ttl = 24 * time.Hour
	}
	if s.rememberTTL <= 0 {
		s.rememberTTL = 30 * 24 * time.Hour
	}
	return s
}

func (s *Service) Kind() domain.AccountKind { return s.kind }

// Login checks the password before the verified flag, so an unverified
// account is only revealed to someone who knows its password.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, fmt.Errorf("identifier and password are required: %w", domain.ErrValidation)
	}
	if strings.Contains(identifier, "@") {
		identifier = domain.NormalizeEmail(identifier)
	}

	a, err := s.store.GetByIdentifier(ctx, identifier)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown identifier: %w", domain.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !s.verifier.Verify(in.Password, a.PasswordHash) {
		return nil, fmt.Errorf("password mismatch: %w", domain.ErrInvalidCredentials)
	}
	if !a.Verified {
		return nil, fmt.Errorf("%s is not verified: %w", s.kind, domain.ErrNotVerified)
	}

	ttl := s.ttl
	if in.RememberMe {
		ttl = s.rememberTTL
	}
	now := s.now().UTC()
	tok, err := s.tokens.Sign(domain.SessionClaims{
		AccountID: a.AccountID,
		Kind:      s.kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &LoginResult{Token: tok, TTL: ttl, Account: a}, nil
}

// Authenticate validates a presented credential for this kind.
func (s *Service) Authenticate(token string) (*domain.SessionClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("no session: %w", domain.ErrUnauthorized)
	}
	c, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrInvalidToken)
	}
	if c.Kind != s.kind {
		return nil, fmt.Errorf("credential issued for %s: %w", c.Kind, domain.ErrInvalidToken)
	}
	return c, nil
}

// Profile returns the account behind authenticated claims.
func (s *Service) Profile(ctx context.Context, c *domain.SessionClaims) (*domain.Account, error) {
	a, err := s.store.Get(ctx, c.AccountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("account gone: %w", domain.ErrInvalidToken)
	}
	return a, err
}
