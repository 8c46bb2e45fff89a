package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func healthRouter(checks map[string]Check) http.Handler {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler(checks).Ping)
	return r
}

func TestHealth_Ping(t *testing.T) {
	rr := httptest.NewRecorder()
	healthRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}

func TestHealth_Ready(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	rr := httptest.NewRecorder()
	healthRouter(map[string]Check{"store": ok}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"ready","data":{"store":"ok"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	healthRouter(map[string]Check{"store": ok, "redis": down}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"message":"not ready","data":{"store":"ok","redis":"connection refused"}}`, rr.Body.String())
}

func TestHealth_UnknownAction(t *testing.T) {
	rr := httptest.NewRecorder()
	healthRouter(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health-check/bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
