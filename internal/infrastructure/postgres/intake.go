package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unifiro-api/internal/domain"
)

type IntakeRepo struct {
	db *sql.DB
}

func NewIntakeRepo(db *sql.DB) *IntakeRepo {
	return &IntakeRepo{db: db}
}

func (r *IntakeRepo) InsertContact(ctx context.Context, c *domain.Contact) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (id, name, email, subject, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ContactID, c.Name, c.Email, c.Subject, c.Message, c.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("email already exist: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *IntakeRepo) InsertRegistration(ctx context.Context, reg *domain.Registration) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registrations (id, full_name, mobile_number, subject, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		reg.RegistrationID, reg.FullName, reg.MobileNumber, reg.Subject, reg.Message, reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

const insertStartupApplication = `INSERT INTO startup_applications (
	id, full_name_founder, gender, age, startup_name, location, mobile, email,
	education, stage, sector, description, challenge, problem, target_market, uvp,
	has_team, team_details, has_revenue, mrr, has_ip, is_raising, raise_amount,
	previous_funding, long_term_vision,
	pitch_deck_object, pitch_deck_filename, pitch_deck_size, pitch_deck_mime_type, pitch_deck_sha256,
	confirm_accurate, confirm_disqualification, confirm_contact, created_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
	$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34
)`

func (r *IntakeRepo) InsertStartupApplication(ctx context.Context, a *domain.StartupApplication) error {
	_, err := r.db.ExecContext(ctx, insertStartupApplication,
		a.ApplicationID, a.FullNameFounder, a.Gender, a.Age, a.StartupName, a.Location, a.Mobile, a.Email,
		a.Education, a.Stage, a.Sector, a.Description, a.Challenge, a.Problem, a.TargetMarket, a.UVP,
		a.HasTeam, a.TeamDetails, a.HasRevenue, a.MRR, a.HasIP, a.IsRaising, a.RaiseAmount,
		a.PreviousFunding, a.LongTermVision,
		a.PitchDeck.Object, a.PitchDeck.Name, a.PitchDeck.Size, a.PitchDeck.ContentType, a.PitchDeck.Hash,
		a.ConfirmAccurate, a.ConfirmDisqualification, a.ConfirmContact, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert startup application: %w", err)
	}
	return nil
}
