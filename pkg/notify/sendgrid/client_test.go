package sendgrid_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"exposureshield/pkg/notify"
	"exposureshield/pkg/notify/sendgrid"
	"exposureshield/pkg/serrors"

	"github.com/stretchr/testify/require"
)

// rtFunc allows using a function as an http.RoundTripper.
type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func status(code int) *http.Response {
	return &http.Response{StatusCode: code, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(`{"errors":[]}`))}
}

var msg = notify.Message{
	To:      "ops@example.com",
	From:    "noreply@example.com",
	ReplyTo: "visitor@example.org",
	Subject: "ExposureShield feedback",
	Body:    "hello",
}

func TestClient_Send_success(t *testing.T) {
	c := sendgrid.New(&http.Client{Transport: rtFunc(func(r *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "api.sendgrid.com", r.URL.Host)
		require.Equal(t, "/v3/mail/send", r.URL.Path)
		require.Equal(t, "Bearer sg-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ExposureShield feedback", body["subject"])
		require.Equal(t, map[string]any{"email": "noreply@example.com"}, body["from"])
		require.Equal(t, map[string]any{"email": "visitor@example.org"}, body["reply_to"])
		require.Equal(t, []any{map[string]any{"to": []any{map[string]any{"email": "ops@example.com"}}}}, body["personalizations"])
		require.Equal(t, []any{map[string]any{"type": "text/plain", "value": "hello"}}, body["content"])

		return status(http.StatusAccepted), nil
	})}, "sg-key", "")

	require.NoError(t, c.Send(context.Background(), msg))
}

func TestClient_Send_errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		fn   rtFunc
		kind serrors.Kind
	}{
		{name: "no key", kind: serrors.ErrMisconfigured, fn: func(*http.Request) (*http.Response, error) { return status(http.StatusAccepted), nil }},
		{name: "429", key: "k", kind: serrors.ErrRateLimited, fn: func(*http.Request) (*http.Response, error) { return status(http.StatusTooManyRequests), nil }},
		{name: "401", key: "k", kind: serrors.ErrMisconfigured, fn: func(*http.Request) (*http.Response, error) { return status(http.StatusUnauthorized), nil }},
		{name: "400", key: "k", kind: serrors.ErrBadRequest, fn: func(*http.Request) (*http.Response, error) { return status(http.StatusBadRequest), nil }},
		{name: "500", key: "k", kind: serrors.ErrUnavailable, fn: func(*http.Request) (*http.Response, error) { return status(http.StatusInternalServerError), nil }},
		{name: "transport", key: "k", kind: serrors.ErrUnavailable, fn: func(*http.Request) (*http.Response, error) { return nil, errors.New("eof") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sendgrid.New(&http.Client{Transport: tt.fn}, tt.key, "https://sendgrid.test")
			require.ErrorIs(t, c.Send(context.Background(), msg), tt.kind)
		})
	}
}
