package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/application/notification"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/pkg/id"
	"github.com/unifiro-api/internal/pkg/otp"
)

// Store is the credential store for one account kind. Implementations must
// report a uniqueness violation on Insert as domain.ErrConflict and a missing
// row as domain.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmailOrMobile(ctx context.Context, email, mobile string) (bool, error)
	Update(ctx context.Context, accountID string, u domain.AccountUpdate) error
}

// SecretHasher hashes passwords and OTP codes.
type SecretHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

type SignupInput struct {
	Email     string
	Mobile    string
	Password  string
	User      *domain.UserProfile
	Organizer *domain.OrganizerProfile
}

type Deps struct {
	Kind     domain.AccountKind
	Store    Store
	Hasher   SecretHasher
	Notifier notification.Notifier
	OTPTTL   time.Duration
	Log      zerolog.Logger

	// Optional; tests pin these.
	Now         func() time.Time
	GenerateOTP func() (string, error)
}

// Service runs signup and email verification for one account kind.
type Service struct {
	kind     domain.AccountKind
	store    Store
	hasher   SecretHasher
	notifier notification.Notifier
	otpTTL   time.Duration
	log      zerolog.Logger
	now      func() time.Time
	genOTP   func() (string, error)
}

func NewService(d Deps) *Service {
	s := &Service{
		kind:     d.Kind,
		store:    d.Store,
		hasher:   d.Hasher,
		notifier: d.Notifier,
		otpTTL:   d.OTPTTL,
		log:      d.Log.With().Str("account_kind", string(d.Kind)).Logger(),
		now:      d.Now,
		genOTP:   d.GenerateOTP,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.genOTP == nil {
		s.genOTP = otp.Generate
	}
	if s.otpTTL <= 0 {
		s.otpTTL = 15 * time.Minute
	}
	return s
}

func (s *Service) Kind() domain.AccountKind { return s.kind }

// Signup creates an unverified account with a pending OTP and queues the code
// for delivery.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Account, error) {
	email := domain.NormalizeEmail(in.Email)
	mobile := strings.TrimSpace(in.Mobile)
	if err := s.checkSignup(email, mobile, in); err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsByEmailOrMobile(ctx, email, mobile)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%s already exists: %w", s.kind, domain.ErrConflict)
	}

	pwHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	code, pending, err := s.newOTP()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Kind:         s.kind,
		Email:        email,
		Mobile:       mobile,
		PasswordHash: pwHash,
		OTP:          pending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch s.kind {
	case domain.KindUser:
		a.User = in.User
	case domain.KindOrganizer:
		a.Organizer = in.Organizer
	}

	if err := s.store.Insert(ctx, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%s already exists: %w", s.kind, domain.ErrConflict)
		}
		return nil, err
	}

	s.sendOTP(a, code)
	return a, nil
}

func (s *Service) checkSignup(email, mobile string, in SignupInput) error {
	if email == "" || mobile == "" || in.Password == "" {
		return fmt.Errorf("all fields are required: %w", domain.ErrValidation)
	}
	if !domain.ValidMobile(mobile) {
		return fmt.Errorf("invalid mobile number: %w", domain.ErrValidation)
	}
	switch s.kind {
	case domain.KindUser:
		if in.User == nil || strings.TrimSpace(in.User.FullName) == "" || !in.User.TermsAccepted {
			return fmt.Errorf("all fields are required: %w", domain.ErrValidation)
		}
	case domain.KindOrganizer:
		if in.Organizer == nil || strings.TrimSpace(in.Organizer.OrganizerName) == "" {
			return fmt.Errorf("all fields are required: %w", domain.ErrValidation)
		}
	}
	return nil
}

// VerifyOTP marks the account verified when code matches the pending,
// unexpired OTP. Any failure leaves the account untouched.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return fmt.Errorf("email and otp are required: %w", domain.ErrValidation)
	}

	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if a.Verified {
		return fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
	}
	if a.OTP == nil {
		return fmt.Errorf("otp not generated: %w", domain.ErrNoPendingOTP)
	}
	if a.OTP.ExpiredAt(s.now()) {
		return fmt.Errorf("otp expired: %w", domain.ErrExpired)
	}
	if !s.hasher.Verify(code, a.OTP.Hash) {
		return fmt.Errorf("otp mismatch: %w", domain.ErrInvalidOTP)
	}

	verified := true
	return s.store.Update(ctx, a.AccountID, domain.AccountUpdate{Verified: &verified, ClearOTP: true})
}

// ResendOTP replaces any pending OTP with a fresh one and queues it.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrValidation)
	}

	a, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if a.Verified {
		return fmt.Errorf("email already verified: %w", domain.ErrAlreadyVerified)
	}

	code, pending, err := s.newOTP()
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, a.AccountID, domain.AccountUpdate{OTP: pending}); err != nil {
		return err
	}
	s.sendOTP(a, code)
	return nil
}

func (s *Service) newOTP() (string, *domain.PendingSecret, error) {
	code, err := s.genOTP()
	if err != nil {
		return "", nil, err
	}
	hash, err := s.hasher.Hash(code)
	if err != nil {
		return "", nil, err
	}
	return code, &domain.PendingSecret{Hash: hash, ExpiresAt: s.now().UTC().Add(s.otpTTL)}, nil
}

func (s *Service) sendOTP(a *domain.Account, code string) {
	ok := s.notifier.Enqueue(notification.Message{
		Topic:       notification.TopicOTP,
		AccountKind: s.kind,
		Email:       a.Email,
		Mobile:      a.Mobile,
		Name:        a.DisplayName(),
		OTP:         code,
	})
	if !ok {
		s.log.Warn().Str("account_id", a.AccountID).Msg("otp notification not queued")
	}
}
