// Package mailer delivers invitation and offer emails over SMTP or AWS SES.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Message is a rendered email ready for a transport.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Validate checks the envelope addresses.
func (m Message) Validate() error {
	if !isValidEmail(m.From) {
		return fmt.Errorf("invalid 'from' email address: %q", m.From)
	}
	if !isValidEmail(m.To) {
		return fmt.Errorf("invalid 'to' email address: %q", m.To)
	}
	return nil
}

// Mailer sends a message and returns the transport's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Verifier is implemented by transports that can check their connection
// ahead of the first send.
type Verifier interface {
	Verify(ctx context.Context) error
}

func isValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return false
	}
	return strings.Contains(parts[1], ".") || parts[1] == "localhost"
}

// generateMessageID follows the <nanos.local@host> shape.
func generateMessageID(to, host string) string {
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixNano(), sanitizeLocalPart(to), host)
}

func sanitizeLocalPart(email string) string {
	local := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, strings.SplitN(email, "@", 2)[0])

	if len(local) > 10 {
		local = local[:10]
	}
	if local == "" {
		return "user"
	}
	return local
}
