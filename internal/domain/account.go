package domain

import (
	"regexp"
	"strings"
	"time"
)

// AccountKind discriminates the two account populations. Each kind lives in
// its own table and has its own session cookie.
type AccountKind string

const (
	KindUser      AccountKind = "user"
	KindOrganizer AccountKind = "organizer"
)

func (k AccountKind) Valid() bool {
	return k == KindUser || k == KindOrganizer
}

// PendingSecret is a hashed one-time secret with its expiry. A nil
// *PendingSecret means nothing is pending; both fields are always set together.
type PendingSecret struct {
	Hash      string
	ExpiresAt time.Time
}

// ExpiredAt reports whether the secret is no longer usable at t.
// A secret is expired from the exact instant of ExpiresAt onwards.
func (p *PendingSecret) ExpiredAt(t time.Time) bool {
	return !t.Before(p.ExpiresAt)
}

type Account struct {
	AccountID    string
	Kind         AccountKind
	Email        string
	Mobile       string
	PasswordHash string
	Verified     bool
	OTP          *PendingSecret
	Reset        *PendingSecret
	User         *UserProfile
	Organizer    *OrganizerProfile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayName is the human name shown after login.
func (a *Account) DisplayName() string {
	switch {
	case a.User != nil:
		return a.User.FullName
	case a.Organizer != nil:
		return a.Organizer.OrganizerName
	}
	return ""
}

type UserProfile struct {
	FullName      string `json:"full_name"`
	TermsAccepted bool   `json:"terms_accepted"`
}

type OrganizerProfile struct {
	OrganizerName string `json:"organizer_name"`
	OrganizerType string `json:"organizer_type"`
	About         string `json:"about"`
	Location      string `json:"location"`
	IDProof       string `json:"id_proof"`
	BankAccount   string `json:"-"`
	IFSC          string `json:"-"`
}

// AccountUpdate is a partial, single-row update. Stores apply every set
// field in one atomic write. Clear* wins over the matching setter.
type AccountUpdate struct {
	PasswordHash *string
	Verified     *bool
	OTP          *PendingSecret
	ClearOTP     bool
	Reset        *PendingSecret
	ClearReset   bool
}

func (u AccountUpdate) Empty() bool {
	return u.PasswordHash == nil && u.Verified == nil &&
		u.OTP == nil && !u.ClearOTP && u.Reset == nil && !u.ClearReset
}

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// ValidMobile reports whether mobile is a plain phone number: digits with an
// optional leading plus. Lookups by identifier rely on a mobile never
// containing "@".
func ValidMobile(mobile string) bool {
	return mobilePattern.MatchString(mobile)
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
