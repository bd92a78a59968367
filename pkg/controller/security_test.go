package controller_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"exposureshield/pkg/controller"

	"github.com/stretchr/testify/require"
)

func TestWithSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	rec := httptest.NewRecorder()
	controller.WithSecurityHeaders(controller.SecurityHeaders{
		ContentSecurityPolicy:   "default-src 'none'",
		StrictTransportSecurity: "max-age=60",
	})(next).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scan", nil))

	res := rec.Result()
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.Equal(t, "default-src 'none'", res.Header.Get("Content-Security-Policy"))
	require.Equal(t, "max-age=60", res.Header.Get("Strict-Transport-Security"))
	require.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	require.NotEmpty(t, res.Header.Get("Referrer-Policy"))
}

func TestWithSecurityHeaders_EmptyValuesAreOmitted(t *testing.T) {
	rec := httptest.NewRecorder()
	controller.WithSecurityHeaders(controller.SecurityHeaders{})(http.NotFoundHandler()).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	_, hasCSP := rec.Result().Header["Content-Security-Policy"]
	require.False(t, hasCSP)
	_, hasHSTS := rec.Result().Header["Strict-Transport-Security"]
	require.False(t, hasHSTS)
}
