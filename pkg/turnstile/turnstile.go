// Package turnstile verifies Cloudflare Turnstile tokens.
//
//go:generate mockgen -package mockturnstile -source=turnstile.go -destination=mock/mockturnstile.go Verifier
package turnstile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"exposureshield/pkg/serrors"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks a CAPTCHA response token.
type Verifier interface {
	// Verify reports whether token was accepted. An error means the
	// verification service could not be asked.
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Client talks to the siteverify endpoint.
type Client struct {
	httpClient *http.Client
	secret     string
	verifyURL  string
}

var _ Verifier = (*Client)(nil)

// New returns a Client. An empty verifyURL selects DefaultVerifyURL.
func New(httpClient *http.Client, secret, verifyURL string) *Client {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}

	return &Client{
		httpClient: httpClient,
		secret:     secret,
		verifyURL:  verifyURL,
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify implements Verifier.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if c.secret == "" {
		return false, serrors.With(serrors.ErrMisconfigured, "turnstile secret is not configured")
	}
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, serrors.Wrap(serrors.ErrUnavailable, err, "could not reach turnstile")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, serrors.Wrap(serrors.ErrUnavailable, err, "could not read turnstile response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, serrors.With(serrors.ErrUnavailable, "turnstile returned %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return false, serrors.Wrap(serrors.ErrUnavailable, err, "could not decode turnstile response")
	}

	return out.Success, nil
}
