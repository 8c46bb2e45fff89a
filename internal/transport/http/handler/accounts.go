package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/unifiro-api/internal/application/account"
	"github.com/unifiro-api/internal/application/session"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/pkg/validate"
	"github.com/unifiro-api/internal/transport/http/middleware"
)

type AccountService interface {
	Signup(ctx context.Context, in account.SignupInput) (*domain.Account, error)
	VerifyOTP(ctx context.Context, email, code string) error
	ResendOTP(ctx context.Context, email string) error
}

type RecoveryService interface {
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
}

type SessionService interface {
	Login(ctx context.Context, in session.LoginInput) (*session.LoginResult, error)
	Profile(ctx context.Context, c *domain.SessionClaims) (*domain.Account, error)
}

// AccountHandler serves the signup, verification, recovery and session
// routes of one account kind.
type AccountHandler struct {
	kind         domain.AccountKind
	label        string
	accounts     AccountService
	recovery     RecoveryService
	sessions     SessionService
	secureCookie bool
}

func NewAccountHandler(kind domain.AccountKind, accounts AccountService, recovery RecoveryService, sessions SessionService, secureCookie bool) *AccountHandler {
	label := "User"
	if kind == domain.KindOrganizer {
		label = "Organizer"
	}
	return &AccountHandler{
		kind:         kind,
		label:        label,
		accounts:     accounts,
		recovery:     recovery,
		sessions:     sessions,
		secureCookie: secureCookie,
	}
}

type userSignupRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Mobile   string `json:"mobile" validate:"required,max=16"`
	Password string `json:"password" validate:"required,max=72"`
	Terms    bool   `json:"terms" validate:"required"`
}

type organizerSignupRequest struct {
	OrganizerName string `json:"organizerName" validate:"required"`
	OrganizerType string `json:"organizerType"`
	Email         string `json:"email" validate:"required,email"`
	Mobile        string `json:"mobile" validate:"required,max=16"`
	Password      string `json:"password" validate:"required,max=72"`
	About         string `json:"about"`
	Location      string `json:"location"`
	IDProof       string `json:"idProof"`
	BankAccount   string `json:"bankAccount"`
	IFSC          string `json:"ifsc"`
}

type loginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// bind decodes and validates a JSON body, replying 400 with msg on failure.
func bind(w http.ResponseWriter, r *http.Request, dst interface{}, msg string) bool {
	if err := decodeJSON(r, dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Message: msg, Error: err.Error()})
		return false
	}
	return true
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in account.SignupInput
	switch h.kind {
	case domain.KindOrganizer:
		var req organizerSignupRequest
		if !bind(w, r, &req, "All fields are required") {
			return
		}
		in = account.SignupInput{
			Email:    req.Email,
			Mobile:   req.Mobile,
			Password: req.Password,
			Organizer: &domain.OrganizerProfile{
				OrganizerName: req.OrganizerName,
				OrganizerType: req.OrganizerType,
				About:         req.About,
				Location:      req.Location,
				IDProof:       req.IDProof,
				BankAccount:   req.BankAccount,
				IFSC:          req.IFSC,
			},
		}
	default:
		var req userSignupRequest
		if !bind(w, r, &req, "All fields are required") {
			return
		}
		in = account.SignupInput{
			Email:    req.Email,
			Mobile:   req.Mobile,
			Password: req.Password,
			User:     &domain.UserProfile{FullName: req.FullName, TermsAccepted: req.Terms},
		}
	}

	a, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "All fields are required")
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{
		Message: "Account created. Please verify your email.",
		Data:    AccountSummary{ID: a.AccountID, Name: a.DisplayName()},
	})
}

func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if !bind(w, r, &req, "Email and OTP are required") {
		return
	}
	if err := h.accounts.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		h.fail(w, r, err, "Email and OTP are required")
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (h *AccountHandler) ResendEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !bind(w, r, &req, "Email is required") {
		return
	}
	if err := h.accounts.ResendOTP(r.Context(), req.Email); err != nil {
		h.fail(w, r, err, "Email is required")
		return
	}
	writeMessage(w, http.StatusOK, "OTP resent successfully")
}

// ForgotPassword answers the same way whether or not the account exists.
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !bind(w, r, &req, "Email is required") {
		return
	}
	if err := h.recovery.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err, "Email is required")
		return
	}
	writeMessage(w, http.StatusOK, "If an account exists, a reset link has been sent")
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !bind(w, r, &req, "Invalid request") {
		return
	}
	if err := h.recovery.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, r, err, "Invalid request")
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !bind(w, r, &req, "Identifier and password are required") {
		return
	}
	res, err := h.sessions.Login(r.Context(), session.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		h.fail(w, r, err, "Identifier and password are required")
		return
	}
	h.setSessionCookie(w, res.Token, res.TTL)
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message: "Login successful",
		User:    AccountSummary{ID: res.Account.AccountID, Name: res.Account.DisplayName()},
	})
}

// Logout clears the session cookie. The credential itself stays valid until
// it expires.
func (h *AccountHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.setSessionCookie(w, "", -1)
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	a, err := h.sessions.Profile(r.Context(), claims)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Data: toProfileView(a)})
}

// setSessionCookie writes the kind's cookie; a negative ttl deletes it.
func (h *AccountHandler) setSessionCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	c := &http.Cookie{
		Name:     middleware.CookieName(h.kind),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(ttl / time.Second),
	}
	if ttl < 0 {
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

// fail maps err to a reply. validationMsg is used for ErrValidation.
func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, err error, validationMsg string) {
	msg := validationMsg
	switch {
	case errors.Is(err, domain.ErrValidation):
	case errors.Is(err, domain.ErrConflict):
		msg = h.label + " already exists"
	case errors.Is(err, domain.ErrNotFound):
		msg = h.label + " not found"
	case errors.Is(err, domain.ErrAlreadyVerified):
		msg = "Email already verified"
	case errors.Is(err, domain.ErrNoPendingOTP):
		msg = "OTP not generated"
	case errors.Is(err, domain.ErrExpired):
		msg = "OTP expired"
	case errors.Is(err, domain.ErrInvalidOTP):
		msg = "Invalid OTP"
	case errors.Is(err, domain.ErrInvalidCredentials):
		msg = "Invalid credentials"
	case errors.Is(err, domain.ErrNotVerified):
		msg = h.label + " is not verified"
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		msg = "Token expired or invalid"
	case errors.Is(err, domain.ErrInvalidToken):
		msg = "Invalid or expired session"
	case errors.Is(err, domain.ErrUnauthorized):
		msg = "Not authenticated"
	}
	httpError(w, r, err, msg)
}
