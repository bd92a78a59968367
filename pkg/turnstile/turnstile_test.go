package turnstile_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"exposureshield/pkg/serrors"
	"exposureshield/pkg/turnstile"

	"github.com/stretchr/testify/require"
)

// rtFunc allows using a function as an http.RoundTripper.
type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func respond(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}
}

func TestClient_Verify_success(t *testing.T) {
	c := turnstile.New(&http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "challenges.cloudflare.com", r.URL.Host)
		require.Equal(t, "/turnstile/v0/siteverify", r.URL.Path)
		require.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		form, err := url.ParseQuery(string(b))
		require.NoError(t, err)
		require.Equal(t, "s3cret", form.Get("secret"))
		require.Equal(t, "tok", form.Get("response"))
		require.Equal(t, "203.0.113.9", form.Get("remoteip"))

		return respond(http.StatusOK, `{"success":true,"error-codes":[]}`), nil
	})}, "s3cret", "")

	ok, err := c.Verify(context.Background(), "tok", "203.0.113.9")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClient_Verify_rejected(t *testing.T) {
	c := turnstile.New(&http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		require.NotContains(t, string(b), "remoteip")

		return respond(http.StatusOK, `{"success":false,"error-codes":["invalid-input-response"]}`), nil
	})}, "s3cret", "https://verify.test/siteverify")

	ok, err := c.Verify(context.Background(), "tok", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClient_Verify_emptyToken(t *testing.T) {
	c := turnstile.New(&http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")

		return nil, nil
	})}, "s3cret", "")

	ok, err := c.Verify(context.Background(), "  ", "")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClient_Verify_errors(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		fn     rtFunc
		kind   serrors.Kind
	}{
		{
			name: "missing secret",
			kind: serrors.ErrMisconfigured,
			fn: func(*http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `{"success":true}`), nil
			},
		},
		{
			name:   "transport",
			secret: "s",
			kind:   serrors.ErrUnavailable,
			fn: func(*http.Request) (*http.Response, error) {
				return nil, errors.New("timeout")
			},
		},
		{
			name:   "non 2xx",
			secret: "s",
			kind:   serrors.ErrUnavailable,
			fn: func(*http.Request) (*http.Response, error) {
				return respond(http.StatusInternalServerError, ""), nil
			},
		},
		{
			name:   "bad json",
			secret: "s",
			kind:   serrors.ErrUnavailable,
			fn: func(*http.Request) (*http.Response, error) {
				return respond(http.StatusOK, "<html>"), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := turnstile.New(&http.Client{Transport: tt.fn}, tt.secret, "")
			ok, err := c.Verify(context.Background(), "tok", "")
			require.ErrorIs(t, err, tt.kind)
			require.False(t, ok)
		})
	}
}
