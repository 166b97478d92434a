// internal/invitations/mailer/smtp.go
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"ideamarket/internal/common/config"
	"ideamarket/internal/common/logger"
)

// SMTPMailer sends through an authenticated SMTP relay. Secure selects
// implicit TLS; otherwise STARTTLS is used when the server offers it.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger logger.Logger
	dialer *net.Dialer
}

func NewSMTPMailer(cfg config.SMTPConfig, log logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		cfg:    cfg,
		logger: logger.Component(log, "smtp-mailer"),
		dialer: &net.Dialer{Timeout: 10 * time.Second},
	}
}

func (m *SMTPMailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

// Send delivers msg and returns the Message-ID header it was sent with.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled before sending email: %w", err)
	}

	messageID := generateMessageID(msg.To, m.cfg.Host)
	body, err := buildMIMEMessage(msg, messageID, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	client, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := client.Mail(msg.From); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return "", fmt.Errorf("failed to set recipient %s: %w", msg.To, err)
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close data writer: %w", err)
	}
	if err := client.Quit(); err != nil {
		m.logger.Warn("SMTP QUIT failed after delivery", map[string]interface{}{"error": err.Error()})
	}

	m.logger.Debug("Email sent", map[string]interface{}{"to": msg.To, "messageId": messageID})
	return messageID, nil
}

// Verify opens a connection, negotiates TLS and authenticates.
func (m *SMTPMailer) Verify(ctx context.Context) error {
	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

// session is an SMTP client bound to the context that opened it.
type session struct {
	*smtp.Client
	stop func() bool
}

func (s *session) Close() error {
	s.stop()
	return s.Client.Close()
}

// connect dials, upgrades to TLS and authenticates. The connection is torn
// down when ctx ends.
func (m *SMTPMailer) connect(ctx context.Context) (*session, error) {
	var (
		conn net.Conn
		err  error
	)
	tlsConfig := &tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}

	if m.cfg.Secure {
		td := &tls.Dialer{NetDialer: m.dialer, Config: tlsConfig}
		conn, err = td.DialContext(ctx, "tcp", m.addr())
	} else {
		conn, err = m.dialer.DialContext(ctx, "tcp", m.addr())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		stop()
		conn.Close()
		return nil, fmt.Errorf("failed to start SMTP session: %w", err)
	}
	client := &session{Client: c, stop: stop}

	if !m.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}

	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	return client, nil
}

// buildMIMEMessage renders a multipart/alternative message with a plain
// text and an HTML part, both quoted-printable.
func buildMIMEMessage(msg Message, messageID string, date time.Time) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.content)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&out, "%s: %s\r\n", k, v) }
	header("From", msg.From)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	out.WriteString("\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}
