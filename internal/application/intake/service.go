package intake

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/pkg/id"
)

// MaxPitchDeckBytes caps an uploaded pitch deck at 1 MiB.
const MaxPitchDeckBytes = 1 << 20

var allowedDeckTypes = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

var (
	ErrDeckMissing  = errors.New("pitch deck file is required")
	ErrDeckTooLarge = errors.New("pitch deck exceeds 1 MiB")
	ErrDeckType     = errors.New("only PDF or PPTX files are allowed")
)

type Store interface {
	// InsertContact reports a duplicate email as domain.ErrConflict.
	InsertContact(ctx context.Context, c *domain.Contact) error
	InsertRegistration(ctx context.Context, r *domain.Registration) error
	InsertStartupApplication(ctx context.Context, a *domain.StartupApplication) error
}

type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type ContactInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type RegistrationInput struct {
	FullName     string
	MobileNumber string
	Subject      string
	Message      string
}

// StartupInput carries the application form as submitted. Yes/No answers
// are "Yes" or "No"; confirmations are "true" when ticked.
type StartupInput struct {
	FullNameFounder         string
	Gender                  string
	Age                     string
	StartupName             string
	Location                string
	Mobile                  string
	Email                   string
	Education               string
	Stage                   string
	Sector                  string
	Description             string
	Challenge               string
	Problem                 string
	TargetMarket            string
	UVP                     string
	HasTeam                 string
	TeamDetails             string
	HasRevenue              string
	MRR                     string
	HasIP                   string
	IsRaising               string
	RaiseAmount             string
	PreviousFunding         string
	LongTermVision          string
	ConfirmAccurate         string
	ConfirmDisqualification string
	ConfirmContact          string
}

// Upload is a file part of a multipart form.
type Upload struct {
	Reader   io.Reader
	Filename string
	Size     int64
}

type Deps struct {
	Store   Store
	Objects ObjectStore
	Log     zerolog.Logger
	Now     func() time.Time
}

// Service stores the public intake forms.
type Service struct {
	store   Store
	objects ObjectStore
	log     zerolog.Logger
	now     func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{store: d.Store, objects: d.Objects, log: d.Log, now: d.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) SubmitContact(ctx context.Context, in ContactInput) (*domain.Contact, error) {
	c := &domain.Contact{
		ContactID: id.New(),
		Name:      strings.TrimSpace(in.Name),
		Email:     domain.NormalizeEmail(in.Email),
		Subject:   strings.TrimSpace(in.Subject),
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: s.now().UTC(),
	}
	if c.Name == "" || c.Email == "" || c.Subject == "" || c.Message == "" {
		return nil, fmt.Errorf("all fields are required: %w", domain.ErrValidation)
	}
	if err := s.store.InsertContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) SubmitRegistration(ctx context.Context, in RegistrationInput) (*domain.Registration, error) {
	r := &domain.Registration{
		RegistrationID: id.New(),
		FullName:       strings.TrimSpace(in.FullName),
		MobileNumber:   strings.TrimSpace(in.MobileNumber),
		Subject:        strings.TrimSpace(in.Subject),
		Message:        strings.TrimSpace(in.Message),
		CreatedAt:      s.now().UTC(),
	}
	if r.FullName == "" || r.MobileNumber == "" {
		return nil, fmt.Errorf("full name and mobile number are required: %w", domain.ErrValidation)
	}
	if err := s.store.InsertRegistration(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SubmitStartupApplication stores the deck in object storage, then the
// application row. The object is removed again if the row cannot be written.
func (s *Service) SubmitStartupApplication(ctx context.Context, in StartupInput, deck *Upload) (*domain.StartupApplication, error) {
	if strings.TrimSpace(in.FullNameFounder) == "" || strings.TrimSpace(in.StartupName) == "" ||
		strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Mobile) == "" {
		return nil, fmt.Errorf("founder name, startup name, email and mobile are required: %w", domain.ErrValidation)
	}
	if deck == nil || deck.Reader == nil {
		return nil, fmt.Errorf("%w: %w", ErrDeckMissing, domain.ErrValidation)
	}

	data, err := io.ReadAll(io.LimitReader(deck.Reader, MaxPitchDeckBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read pitch deck: %w", err)
	}
	if len(data) > MaxPitchDeckBytes {
		return nil, fmt.Errorf("%w: %w", ErrDeckTooLarge, domain.ErrValidation)
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedDeckTypes...) {
		return nil, fmt.Errorf("%w (got %s): %w", ErrDeckType, mtype.String(), domain.ErrValidation)
	}

	now := s.now().UTC()
	app := &domain.StartupApplication{
		ApplicationID:           id.New(),
		FullNameFounder:         strings.TrimSpace(in.FullNameFounder),
		Gender:                  in.Gender,
		Age:                     in.Age,
		StartupName:             strings.TrimSpace(in.StartupName),
		Location:                in.Location,
		Mobile:                  strings.TrimSpace(in.Mobile),
		Email:                   domain.NormalizeEmail(in.Email),
		Education:               in.Education,
		Stage:                   in.Stage,
		Sector:                  in.Sector,
		Description:             in.Description,
		Challenge:               in.Challenge,
		Problem:                 in.Problem,
		TargetMarket:            in.TargetMarket,
		UVP:                     in.UVP,
		HasTeam:                 in.HasTeam,
		TeamDetails:             onlyIfYes(in.HasTeam, in.TeamDetails),
		HasRevenue:              in.HasRevenue,
		MRR:                     onlyIfYes(in.HasRevenue, in.MRR),
		HasIP:                   in.HasIP,
		IsRaising:               in.IsRaising,
		RaiseAmount:             onlyIfYes(in.IsRaising, in.RaiseAmount),
		PreviousFunding:         in.PreviousFunding,
		LongTermVision:          in.LongTermVision,
		ConfirmAccurate:         in.ConfirmAccurate == "true",
		ConfirmDisqualification: in.ConfirmDisqualification == "true",
		ConfirmContact:          in.ConfirmContact == "true",
		CreatedAt:               now,
	}

	name := sanitizeFilename(deck.Filename)
	key := fmt.Sprintf("pitch-decks/%s/%s", app.ApplicationID, name)
	if _, err := s.objects.Upload(ctx, key, bytes.NewReader(data), mtype.String()); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	app.PitchDeck = domain.PitchDeck{
		Object:      key,
		Name:        name,
		Size:        int64(len(data)),
		ContentType: mtype.String(),
		Hash:        hex.EncodeToString(sum[:]),
		UploadedAt:  now,
	}

	if err := s.store.InsertStartupApplication(ctx, app); err != nil {
		if derr := s.objects.Delete(ctx, key); derr != nil {
			s.log.Error().Err(derr).Str("object", key).Msg("orphaned pitch deck")
		}
		return nil, err
	}
	return app, nil
}

func onlyIfYes(answer, value string) *string {
	if answer != "Yes" {
		return nil
	}
	return &value
}

// sanitizeFilename strips directory components and keeps only safe characters
// (alphanumeric, dot, dash, underscore) so names are safe as object keys.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "pitch-deck"
}
