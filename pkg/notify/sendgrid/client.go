// Package sendgrid implements notify.Sender over the SendGrid v3 mail API.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"exposureshield/pkg/notify"
	"exposureshield/pkg/serrors"
)

// DefaultBaseURL is SendGrid's API root.
const DefaultBaseURL = "https://api.sendgrid.com"

// Client sends mail through SendGrid.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

var _ notify.Sender = (*Client)(nil)

// New returns a Client. An empty baseURL selects DefaultBaseURL.
func New(httpClient *http.Client, apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type address struct {
	Email string `json:"email"`
}

type personalization struct {
	To []address `json:"to"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	ReplyTo          *address          `json:"reply_to,omitempty"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

// Send implements notify.Sender.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	if c.apiKey == "" {
		return serrors.With(serrors.ErrMisconfigured, "sendgrid api key is not configured")
	}

	payload := mailRequest{
		Personalizations: []personalization{{To: []address{{Email: msg.To}}}},
		From:             address{Email: msg.From},
		Subject:          msg.Subject,
		Content:          []content{{Type: "text/plain", Value: msg.Body}},
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = &address{Email: msg.ReplyTo}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not marshal mail: %w", err)
	}

	// https://www.twilio.com/docs/sendgrid/api-reference/mail-send/mail-send
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/mail/send", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return serrors.Wrap(serrors.ErrUnavailable, err, "could not reach sendgrid")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return serrors.With(serrors.ErrRateLimited, "sendgrid rate limited the request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return serrors.With(serrors.ErrMisconfigured, "sendgrid rejected the api key (status %d)", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return serrors.With(serrors.ErrBadRequest, "sendgrid rejected the mail (status %d): %s", resp.StatusCode, string(body))
	default:
		return serrors.With(serrors.ErrUnavailable, "sendgrid returned %d", resp.StatusCode)
	}
}
