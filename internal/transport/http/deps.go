package http

import (
	"github.com/unifiro-api/internal/transport/http/handler"
	"github.com/unifiro-api/internal/transport/http/middleware"
)

// SessionService logs an account in and authenticates its cookie.
type SessionService interface {
	handler.SessionService
	middleware.Authenticator
}

// AccountModule is everything the routes of one account kind need.
type AccountModule struct {
	Accounts handler.AccountService
	Recovery handler.RecoveryService
	Sessions SessionService
}

// Deps holds the services the router mounts. Limiter may be nil to disable
// rate limiting.
type Deps struct {
	Users      AccountModule
	Organizers AccountModule
	Intake     handler.IntakeService
	Limiter    middleware.Limiter
	Checks     map[string]handler.Check
}
