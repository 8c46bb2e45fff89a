package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/unifiro-api/internal/application/account"
	"github.com/unifiro-api/internal/application/intake"
	"github.com/unifiro-api/internal/application/session"
	"github.com/unifiro-api/internal/config"
	"github.com/unifiro-api/internal/domain"
	"github.com/unifiro-api/internal/transport/http/handler"
	"github.com/unifiro-api/internal/transport/http/middleware"
)

type stubAccounts struct{}

func (stubAccounts) Signup(context.Context, account.SignupInput) (*domain.Account, error) {
	return &domain.Account{AccountID: "a1"}, nil
}
func (stubAccounts) VerifyOTP(context.Context, string, string) error { return nil }
func (stubAccounts) ResendOTP(context.Context, string) error         { return nil }

type stubRecovery struct{}

func (stubRecovery) ForgotPassword(context.Context, string) error          { return nil }
func (stubRecovery) ResetPassword(context.Context, string, string) error { return nil }

type stubSessions struct{ kind domain.AccountKind }

func (s stubSessions) Kind() domain.AccountKind { return s.kind }

func (s stubSessions) Login(context.Context, session.LoginInput) (*session.LoginResult, error) {
	return nil, domain.ErrInvalidCredentials
}

func (s stubSessions) Profile(_ context.Context, c *domain.SessionClaims) (*domain.Account, error) {
	return &domain.Account{AccountID: c.AccountID, Kind: s.kind}, nil
}

func (s stubSessions) Authenticate(token string) (*domain.SessionClaims, error) {
	if token != "good" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.SessionClaims{AccountID: "a1", Kind: s.kind}, nil
}

type stubIntake struct{}

func (stubIntake) SubmitContact(context.Context, intake.ContactInput) (*domain.Contact, error) {
	return &domain.Contact{ContactID: "c1"}, nil
}
func (stubIntake) SubmitRegistration(context.Context, intake.RegistrationInput) (*domain.Registration, error) {
	return &domain.Registration{RegistrationID: "r1"}, nil
}
func (stubIntake) SubmitStartupApplication(context.Context, intake.StartupInput, *intake.Upload) (*domain.StartupApplication, error) {
	return &domain.StartupApplication{ApplicationID: "s1"}, nil
}

func newTestRouter(limiter middleware.Limiter, checks map[string]handler.Check) http.Handler {
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}, MaxBodyMiB: 2}
	return NewRouter(cfg, zerolog.Nop(), &Deps{
		Users:      AccountModule{Accounts: stubAccounts{}, Recovery: stubRecovery{}, Sessions: stubSessions{kind: domain.KindUser}},
		Organizers: AccountModule{Accounts: stubAccounts{}, Recovery: stubRecovery{}, Sessions: stubSessions{kind: domain.KindOrganizer}},
		Intake:     stubIntake{},
		Limiter:    limiter,
		Checks:     checks,
	})
}

func do(h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_NotFound(t *testing.T) {
	rr := do(newTestRouter(nil, nil), http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"message":"Route not found"}`, rr.Body.String())
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	rr := do(newTestRouter(nil, nil), http.MethodGet, "/api/users/login", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.JSONEq(t, `{"message":"Method not allowed"}`, rr.Body.String())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := newTestRouter(nil, map[string]handler.Check{"store": func(context.Context) error { return errors.New("down") }})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health-check/ping", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/health-check/ready", "").Code)

	rr := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "unifiro_api_http_requests_total")
}

func TestRouter_AccountRoutesPerKind(t *testing.T) {
	r := newTestRouter(nil, nil)
	for _, prefix := range []string{"/api/users", "/api/organizers"} {
		rr := do(r, http.MethodPost, prefix+"/resend-emailOtp", `{"email":"a@example.com"}`)
		assert.Equal(t, http.StatusOK, rr.Code, prefix)

		rr = do(r, http.MethodPost, prefix+"/logout", "")
		assert.Equal(t, http.StatusOK, rr.Code, prefix)
	}
}

func TestRouter_MeUsesTheKindsCookie(t *testing.T) {
	r := newTestRouter(nil, nil)

	rr := do(r, http.MethodGet, "/api/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(r, http.MethodGet, "/api/users/me", "", &http.Cookie{Name: "unifiro_token", Value: "good"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind":"user"`)

	rr = do(r, http.MethodGet, "/api/organizers/me", "", &http.Cookie{Name: "unifiro_token", Value: "good"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(r, http.MethodGet, "/api/organizers/me", "", &http.Cookie{Name: "unifiro_organizer_token", Value: "good"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"kind":"organizer"`)
}

func TestRouter_RateLimitsPublicPosts(t *testing.T) {
	l := middleware.NewMemoryLimiter(2, time.Minute)
	defer l.Close()
	r := newTestRouter(l, nil)

	body := `{"name":"A","email":"a@example.com","subject":"s","message":"m"}`
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/contact", body).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/contact", body).Code)

	rr := do(r, http.MethodPost, "/api/contact", body)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health-check/ping", "").Code)
}

func TestRouter_SpoofedForwardedForDoesNotResetLimit(t *testing.T) {
	l := middleware.NewMemoryLimiter(1, time.Minute)
	defer l.Close()
	r := newTestRouter(l, nil)

	body := `{"name":"A","email":"a@example.com","subject":"s","message":"m"}`
	send := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusCreated, send("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("2.2.2.2"))
}
