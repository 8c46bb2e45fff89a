package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiro-api/internal/application/account"
	"github.com/unifiro-api/internal/application/session"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/transport/http/middleware"
)

// --- mocks ---

type mockAccountSvc struct{ mock.Mock }

func (m *mockAccountSvc) Signup(ctx context.Context, in account.SignupInput) (*domain.Account, error) {
	args := m.Called(ctx, in)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.Error(1)
}

func (m *mockAccountSvc) VerifyOTP(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockAccountSvc) ResendOTP(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type mockRecoverySvc struct{ mock.Mock }

func (m *mockRecoverySvc) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockRecoverySvc) ResetPassword(ctx context.Context, raw, pw string) error {
	return m.Called(ctx, raw, pw).Error(0)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, in session.LoginInput) (*session.LoginResult, error) {
	args := m.Called(ctx, in)
	r, _ := args.Get(0).(*session.LoginResult)
	return r, args.Error(1)
}

func (m *mockSessionSvc) Profile(ctx context.Context, c *domain.SessionClaims) (*domain.Account, error) {
	args := m.Called(ctx, c)
	a, _ := args.Get(0).(*domain.Account)
	return a, args.Error(1)
}

// --- helpers ---

type accountFixture struct {
	h        *AccountHandler
	accounts *mockAccountSvc
	recovery *mockRecoverySvc
	sessions *mockSessionSvc
}

func newAccountFixture(kind domain.AccountKind) *accountFixture {
	f := &accountFixture{accounts: new(mockAccountSvc), recovery: new(mockRecoverySvc), sessions: new(mockSessionSvc)}
	f.h = NewAccountHandler(kind, f.accounts, f.recovery, f.sessions, true)
	return f
}

func postJSON(target, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, r)
	return rr
}

// --- signup ---

func TestSignup_User_Created(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	f.accounts.On("Signup", mock.Anything, account.SignupInput{
		Email: "asha@example.com", Mobile: "9876543210", Password: "pw",
		User: &domain.UserProfile{FullName: "Asha", TermsAccepted: true},
	}).Return(&domain.Account{AccountID: "u1", User: &domain.UserProfile{FullName: "Asha"}}, nil)

	rr := serve(f.h.Signup, postJSON("/api/users/signup",
		`{"fullName":"Asha","email":"asha@example.com","mobile":"9876543210","password":"pw","terms":true}`))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"message":"Account created. Please verify your email.","data":{"id":"u1","name":"Asha"}}`, rr.Body.String())
	f.accounts.AssertExpectations(t)
}

func TestSignup_User_MissingTerms(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	rr := serve(f.h.Signup, postJSON("/api/users/signup",
		`{"fullName":"Asha","email":"asha@example.com","mobile":"9876543210","password":"pw"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message":"All fields are required"`)
	assert.Contains(t, rr.Body.String(), "terms")
	f.accounts.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestSignup_PasswordOverBcryptLimit(t *testing.T) {
	f := newAccountFixture(domain.KindOrganizer)
	long := strings.Repeat("p", 73)
	rr := serve(f.h.Signup, postJSON("/api/organizers/signup",
		`{"organizerName":"Acme","email":"acme@example.com","mobile":"9000000000","password":"`+long+`"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "max")
	f.accounts.AssertNotCalled(t, "Signup", mock.Anything, mock.Anything)
}

func TestSignup_Organizer_Conflict(t *testing.T) {
	f := newAccountFixture(domain.KindOrganizer)
	f.accounts.On("Signup", mock.Anything, mock.MatchedBy(func(in account.SignupInput) bool {
		return in.Organizer != nil && in.Organizer.OrganizerName == "Acme" && in.Organizer.IFSC == "HDFC0001" && in.User == nil
	})).Return(nil, fmt.Errorf("organizer already exists: %w", domain.ErrConflict))

	rr := serve(f.h.Signup, postJSON("/api/organizers/signup",
		`{"organizerName":"Acme","email":"acme@example.com","mobile":"9000000000","password":"pw","ifsc":"HDFC0001"}`))

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.JSONEq(t, `{"message":"Organizer already exists"}`, rr.Body.String())
}

func TestSignup_MalformedBody(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	rr := serve(f.h.Signup, postJSON("/api/users/signup", `{`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSignup_StoreFailureIsOpaque(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	f.accounts.On("Signup", mock.Anything, mock.Anything).Return(nil, errors.New("dynamodb: connection reset"))

	rr := serve(f.h.Signup, postJSON("/api/users/signup",
		`{"fullName":"Asha","email":"asha@example.com","mobile":"9876543210","password":"pw","terms":true}`))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"message":"Server error"}`, rr.Body.String())
}

// --- verification ---

func TestVerifyEmail_Statuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{nil, http.StatusOK, "Email verified successfully"},
		{domain.ErrNotFound, http.StatusNotFound, "User not found"},
		{domain.ErrAlreadyVerified, http.StatusBadRequest, "Email already verified"},
		{domain.ErrNoPendingOTP, http.StatusBadRequest, "OTP not generated"},
		{domain.ErrExpired, http.StatusGone, "OTP expired"},
		{domain.ErrInvalidOTP, http.StatusUnauthorized, "Invalid OTP"},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			f := newAccountFixture(domain.KindUser)
			var err error
			if tc.err != nil {
				err = fmt.Errorf("verify: %w", tc.err)
			}
			f.accounts.On("VerifyOTP", mock.Anything, "asha@example.com", "123456").Return(err)

			rr := serve(f.h.VerifyEmail, postJSON("/", `{"email":"asha@example.com","otp":"123456"}`))
			assert.Equal(t, tc.status, rr.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, tc.msg), rr.Body.String())
		})
	}
}

func TestVerifyEmail_MissingOTP(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	rr := serve(f.h.VerifyEmail, postJSON("/", `{"email":"asha@example.com"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Email and OTP are required")
}

func TestResendEmailOTP(t *testing.T) {
	f := newAccountFixture(domain.KindOrganizer)
	f.accounts.On("ResendOTP", mock.Anything, "acme@example.com").Return(nil)

	rr := serve(f.h.ResendEmailOTP, postJSON("/", `{"email":"acme@example.com"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"OTP resent successfully"}`, rr.Body.String())
}

// --- recovery ---

func TestForgotPassword_SameReplyForUnknownEmail(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	f.recovery.On("ForgotPassword", mock.Anything, "ghost@example.com").Return(nil)

	rr := serve(f.h.ForgotPassword, postJSON("/", `{"email":"ghost@example.com"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"If an account exists, a reset link has been sent"}`, rr.Body.String())
}

func TestResetPassword(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	f.recovery.On("ResetPassword", mock.Anything, "good", "new-pw").Return(nil)
	f.recovery.On("ResetPassword", mock.Anything, "used", "new-pw").
		Return(fmt.Errorf("lookup: %w", domain.ErrInvalidOrExpiredToken))

	rr := serve(f.h.ResetPassword, postJSON("/", `{"token":"good","password":"new-pw"}`))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Password updated successfully"}`, rr.Body.String())

	rr = serve(f.h.ResetPassword, postJSON("/", `{"token":"used","password":"new-pw"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"Token expired or invalid"}`, rr.Body.String())
}

func TestResetPassword_PasswordOverBcryptLimit(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	rr := serve(f.h.ResetPassword, postJSON("/", `{"token":"good","password":"`+strings.Repeat("p", 73)+`"}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	f.recovery.AssertNotCalled(t, "ResetPassword", mock.Anything, mock.Anything, mock.Anything)
}

// --- session ---

func TestLogin_WithoutRememberMeUsesDayCookie(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	f.sessions.On("Login", mock.Anything, session.LoginInput{Identifier: "9876543210", Password: "pw"}).
		Return(&session.LoginResult{
			Token:   "signed",
			TTL:     24 * time.Hour,
			Account: &domain.Account{AccountID: "u1", User: &domain.UserProfile{FullName: "Asha"}},
		}, nil)

	rr := serve(f.h.Login, postJSON("/", `{"identifier":"9876543210","password":"pw"}`))

	require.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 86400, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogin_SetsCookie(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	f.sessions.On("Login", mock.Anything, session.LoginInput{Identifier: "asha@example.com", Password: "pw", RememberMe: true}).
		Return(&session.LoginResult{
			Token:   "signed",
			TTL:     30 * 24 * time.Hour,
			Account: &domain.Account{AccountID: "u1", User: &domain.UserProfile{FullName: "Asha"}},
		}, nil)

	rr := serve(f.h.Login, postJSON("/", `{"identifier":"asha@example.com","password":"pw","rememberMe":true}`))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Login successful","user":{"id":"u1","name":"Asha"}}`, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "unifiro_token", c.Name)
	assert.Equal(t, "signed", c.Value)
	assert.Equal(t, 2592000, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
}

func TestLogin_Failures(t *testing.T) {
	f := newAccountFixture(domain.KindOrganizer)
	f.sessions.On("Login", mock.Anything, mock.MatchedBy(func(in session.LoginInput) bool { return in.Password == "bad" })).
		Return(nil, fmt.Errorf("mismatch: %w", domain.ErrInvalidCredentials))
	f.sessions.On("Login", mock.Anything, mock.MatchedBy(func(in session.LoginInput) bool { return in.Password == "pw" })).
		Return(nil, fmt.Errorf("pending: %w", domain.ErrNotVerified))

	rr := serve(f.h.Login, postJSON("/", `{"identifier":"acme@example.com","password":"bad"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"message":"Invalid credentials"}`, rr.Body.String())
	assert.Empty(t, rr.Result().Cookies())

	rr = serve(f.h.Login, postJSON("/", `{"identifier":"acme@example.com","password":"pw"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message":"Organizer is not verified"}`, rr.Body.String())
}

func TestLogout_ClearsKindCookie(t *testing.T) {
	f := newAccountFixture(domain.KindOrganizer)
	rr := serve(f.h.Logout, postJSON("/", ``))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rr.Body.String())
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "unifiro_organizer_token", cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestMe(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	claims := &domain.SessionClaims{AccountID: "u1", Kind: domain.KindUser}
	f.sessions.On("Profile", mock.Anything, claims).Return(&domain.Account{
		AccountID: "u1", Kind: domain.KindUser, Email: "asha@example.com", Mobile: "1", Verified: true,
		PasswordHash: "secret-hash",
		User:         &domain.UserProfile{FullName: "Asha", TermsAccepted: true},
	}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	r = r.WithContext(context.WithValue(r.Context(), middleware.ClaimsKey, claims))
	rr := serve(f.h.Me, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"id":"u1","kind":"user","email":"asha@example.com","mobile":"1","verified":true,
		"user":{"full_name":"Asha","terms_accepted":true}}}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "secret-hash")
}

func TestMe_WithoutClaims(t *testing.T) {
	f := newAccountFixture(domain.KindUser)
	rr := serve(f.h.Me, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGone, statusFor(fmt.Errorf("x: %w", domain.ErrExpired)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
