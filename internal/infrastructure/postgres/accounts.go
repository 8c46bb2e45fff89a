package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/unifiro-api/internal/domain"
)

var commonColumns = []string{
	"id", "email", "mobile", "password_hash", "verified",
	"otp_hash", "otp_expires_at", "reset_token_digest", "reset_expires_at",
	"created_at", "updated_at",
}

var profileColumns = map[domain.AccountKind][]string{
	domain.KindUser:      {"full_name", "terms_accepted"},
	domain.KindOrganizer: {"organizer_name", "organizer_type", "about", "location", "id_proof", "bank_account", "ifsc"},
}

var tableFor = map[domain.AccountKind]string{
	domain.KindUser:      "users",
	domain.KindOrganizer: "organizers",
}

// AccountRepo stores one account kind in its own table.
type AccountRepo struct {
	db      *sql.DB
	kind    domain.AccountKind
	table   string
	columns string
	now     func() time.Time
}

func NewAccountRepo(db *sql.DB, kind domain.AccountKind) *AccountRepo {
	cols := append(append([]string{}, commonColumns...), profileColumns[kind]...)
	return &AccountRepo{
		db:      db,
		kind:    kind,
		table:   tableFor[kind],
		columns: strings.Join(cols, ", "),
		now:     time.Now,
	}
}

// accountRow mirrors the nullable columns of an account row.
type accountRow struct {
	id, email, mobile, passwordHash string
	verified                        bool
	otpHash, resetDigest            sql.NullString
	otpExpiresAt, resetExpiresAt    sql.NullTime
	createdAt, updatedAt            time.Time
	user                            domain.UserProfile
	org                             domain.OrganizerProfile
}

func (r *AccountRepo) dest(row *accountRow) []any {
	d := []any{
		&row.id, &row.email, &row.mobile, &row.passwordHash, &row.verified,
		&row.otpHash, &row.otpExpiresAt, &row.resetDigest, &row.resetExpiresAt,
		&row.createdAt, &row.updatedAt,
	}
	switch r.kind {
	case domain.KindUser:
		d = append(d, &row.user.FullName, &row.user.TermsAccepted)
	case domain.KindOrganizer:
		o := &row.org
		d = append(d, &o.OrganizerName, &o.OrganizerType, &o.About, &o.Location, &o.IDProof, &o.BankAccount, &o.IFSC)
	}
	return d
}

func (r *AccountRepo) toDomain(row *accountRow) *domain.Account {
	a := &domain.Account{
		AccountID:    row.id,
		Kind:         r.kind,
		Email:        row.email,
		Mobile:       row.mobile,
		PasswordHash: row.passwordHash,
		Verified:     row.verified,
		CreatedAt:    row.createdAt.UTC(),
		UpdatedAt:    row.updatedAt.UTC(),
	}
	if row.otpHash.Valid && row.otpExpiresAt.Valid {
		a.OTP = &domain.PendingSecret{Hash: row.otpHash.String, ExpiresAt: row.otpExpiresAt.Time.UTC()}
	}
	if row.resetDigest.Valid && row.resetExpiresAt.Valid {
		a.Reset = &domain.PendingSecret{Hash: row.resetDigest.String, ExpiresAt: row.resetExpiresAt.Time.UTC()}
	}
	switch r.kind {
	case domain.KindUser:
		u := row.user
		a.User = &u
	case domain.KindOrganizer:
		o := row.org
		a.Organizer = &o
	}
	return a
}

func (r *AccountRepo) Insert(ctx context.Context, a *domain.Account) error {
	args := []any{
		a.AccountID, a.Email, a.Mobile, a.PasswordHash, a.Verified,
		nullHash(a.OTP), nullExpiry(a.OTP), nullHash(a.Reset), nullExpiry(a.Reset),
		a.CreatedAt, a.UpdatedAt,
	}
	switch r.kind {
	case domain.KindUser:
		u := a.User
		if u == nil {
			u = &domain.UserProfile{}
		}
		args = append(args, u.FullName, u.TermsAccepted)
	case domain.KindOrganizer:
		o := a.Organizer
		if o == nil {
			o = &domain.OrganizerProfile{}
		}
		args = append(args, o.OrganizerName, o.OrganizerType, o.About, o.Location, o.IDProof, o.BankAccount, o.IFSC)
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", r.table, r.columns, placeholders(len(args)))
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email or mobile taken: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert %s: %w", r.kind, err)
	}
	return nil
}

func (r *AccountRepo) ExistsByEmailOrMobile(ctx context.Context, email, mobile string) (bool, error) {
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE email = $1 OR mobile = $2)", r.table)
	var exists bool
	if err := r.db.QueryRowContext(ctx, q, email, mobile).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s exists: %w", r.kind, err)
	}
	return exists, nil
}

func (r *AccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.selectOne(ctx, "id = $1", accountID)
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.selectOne(ctx, "email = $1", email)
}

// GetByIdentifier treats anything with an "@" as an email, else a mobile.
func (r *AccountRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	if strings.Contains(identifier, "@") {
		return r.selectOne(ctx, "email = $1", identifier)
	}
	return r.selectOne(ctx, "mobile = $1", identifier)
}

func (r *AccountRepo) GetByResetDigest(ctx context.Context, digest string, now time.Time) (*domain.Account, error) {
	return r.selectOne(ctx, "reset_token_digest = $1 AND reset_expires_at > $2", digest, now)
}

func (r *AccountRepo) selectOne(ctx context.Context, where string, args ...any) (*domain.Account, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1", r.columns, r.table, where)
	var row accountRow
	err := r.db.QueryRowContext(ctx, q, args...).Scan(r.dest(&row)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s not found: %w", r.kind, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", r.kind, err)
	}
	return r.toDomain(&row), nil
}

// Update applies u in a single UPDATE statement.
func (r *AccountRepo) Update(ctx context.Context, accountID string, u domain.AccountUpdate) error {
	if u.Empty() {
		return nil
	}
	q, args := buildAccountUpdate(r.table, accountID, u, r.now().UTC())
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", r.kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s not found: %w", r.kind, domain.ErrNotFound)
	}
	return nil
}

// ConsumeReset sets the new password and clears the reset fields, provided
// digest is still the account's pending reset and unexpired at now. Losing a
// race for the same token reports domain.ErrInvalidOrExpiredToken.
func (r *AccountRepo) ConsumeReset(ctx context.Context, accountID, digest, passwordHash string, now time.Time) error {
	q := fmt.Sprintf(`UPDATE %s SET password_hash = $3, reset_token_digest = NULL, reset_expires_at = NULL, updated_at = $4
		WHERE id = $1 AND reset_token_digest = $2 AND reset_expires_at > $4`, r.table)
	res, err := r.db.ExecContext(ctx, q, accountID, digest, passwordHash, now.UTC())
	if err != nil {
		return fmt.Errorf("consume %s reset: %w", r.kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reset token already used or expired: %w", domain.ErrInvalidOrExpiredToken)
	}
	return nil
}

// buildAccountUpdate renders the statement with columns in a fixed order.
// Clear* wins over the matching setter.
func buildAccountUpdate(table, accountID string, u domain.AccountUpdate, now time.Time) (string, []any) {
	args := []any{accountID}
	var sets []string
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if u.PasswordHash != nil {
		set("password_hash", *u.PasswordHash)
	}
	if u.Verified != nil {
		set("verified", *u.Verified)
	}
	switch {
	case u.ClearOTP:
		sets = append(sets, "otp_hash = NULL", "otp_expires_at = NULL")
	case u.OTP != nil:
		set("otp_hash", u.OTP.Hash)
		set("otp_expires_at", u.OTP.ExpiresAt)
	}
	switch {
	case u.ClearReset:
		sets = append(sets, "reset_token_digest = NULL", "reset_expires_at = NULL")
	case u.Reset != nil:
		set("reset_token_digest", u.Reset.Hash)
		set("reset_expires_at", u.Reset.ExpiresAt)
	}
	set("updated_at", now)

	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(sets, ", ")), args
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

func nullHash(p *domain.PendingSecret) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.Hash, Valid: true}
}

func nullExpiry(p *domain.PendingSecret) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.ExpiresAt, Valid: true}
}
