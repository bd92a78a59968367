// Package notify delivers operator notifications.
//
//go:generate mockgen -package mocknotify -source=interface.go -destination=mock/mocknotify.go *
package notify

import "context"

// Message is a plain-text email.
type Message struct {
	To      string
	From    string
	ReplyTo string
	Subject string
	Body    string
}

// Sender delivers messages. Errors carry an serrors kind: ErrRateLimited and
// ErrUnavailable are worth retrying, ErrBadRequest is not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
