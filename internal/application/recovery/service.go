package recovery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/pkg/token"
)

type Store interface {
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// GetByResetDigest returns the account holding digest whose reset window
	// is still open at now, or domain.ErrNotFound.
	GetByResetDigest(ctx context.Context, digest string, now time.Time) (*domain.Account, error)
	Update(ctx context.Context, accountID string, u domain.AccountUpdate) error
	// ConsumeReset writes passwordHash and clears the reset fields only while
	// digest is still pending and unexpired at now; otherwise it returns
	// domain.ErrInvalidOrExpiredToken.
	ConsumeReset(ctx context.Context, accountID, digest, passwordHash string, now time.Time) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
}

type Deps struct {
	Kind     domain.AccountKind
	Store    Store
	Hasher   PasswordHasher
	Notifier notification.Notifier
	TokenTTL time.Duration
	// LinkBase is the front-end page that accepts the reset token.
	LinkBase string
	Log      zerolog.Logger
	Now      func() time.Time
}

// Service issues and consumes password reset tokens for one account kind.
type Service struct {
	kind     domain.AccountKind
	store    Store
	hasher   PasswordHasher
	notifier notification.Notifier
	ttl      time.Duration
	linkBase string
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		kind:     d.Kind,
		store:    d.Store,
		hasher:   d.Hasher,
		notifier: d.Notifier,
		ttl:      d.TokenTTL,
		linkBase: d.LinkBase,
		log:      d.Log.With().Str("account_kind", string(d.Kind)).Logger(),
		now:      d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ttl <= 0 {
		s.ttl = 15 * time.Minute
	}
	return s
}

// ForgotPassword issues a reset token when email belongs to an account. An
// unknown email is not an error, so callers cannot probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrValidation)
	}

	a, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Debug().Msg("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	raw, digest, err := token.Mint()
	if err != nil {
		return err
	}
	pending := &domain.PendingSecret{Hash: digest, ExpiresAt: s.now().UTC().Add(s.ttl)}
	if err := s.store.Update(ctx, a.AccountID, domain.AccountUpdate{Reset: pending}); err != nil {
		return err
	}

	ok := s.notifier.Enqueue(notification.Message{
		Topic:       notification.TopicPasswordReset,
		AccountKind: s.kind,
		Email:       a.Email,
		Name:        a.DisplayName(),
		ResetLink:   s.resetLink(raw),
	})
	if !ok {
		s.log.Warn().Str("account_id", a.AccountID).Msg("reset notification not queued")
	}
	return nil
}

// ResetPassword consumes rawToken and replaces the password. A token works
// once: the write is conditional on the digest still being pending.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" || newPassword == "" {
		return fmt.Errorf("token and password are required: %w", domain.ErrValidation)
	}

	digest, now := token.Digest(rawToken), s.now().UTC()
	a, err := s.store.GetByResetDigest(ctx, digest, now)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("token expired or invalid: %w", domain.ErrInvalidOrExpiredToken)
	}
	if err != nil {
		return err
	}
	// Stores filter on the window already; this guards one that does not.
	if a.Reset == nil || a.Reset.ExpiredAt(now) {
		return fmt.Errorf("token expired or invalid: %w", domain.ErrInvalidOrExpiredToken)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.store.ConsumeReset(ctx, a.AccountID, digest, hash, now)
}

func (s *Service) resetLink(raw string) string {
	q := url.Values{}
	q.Set("token", raw)
	q.Set("type", string(s.kind))
	sep := "?"
	if strings.Contains(s.linkBase, "?") {
		sep = "&"
	}
	return s.linkBase + sep + q.Encode()
}
