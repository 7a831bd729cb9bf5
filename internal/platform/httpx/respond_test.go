package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthOK(t *testing.T) {
	res := httptest.NewRecorder()
	Health(Check{Name: "redis", Probe: func(context.Context) error { return nil }}).
		ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
}

func TestHealthReportsFailingProbe(t *testing.T) {
	res := httptest.NewRecorder()
	Health(
		Check{Name: "api"},
		Check{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }},
	).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"Service Unavailable","status":503,"detail":"redis: connection refused"}`, res.Body.String())
}
