package mailer

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"ideamarket/internal/common/config"
	"ideamarket/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeSMTP is a minimal plaintext SMTP server recording what it receives.
type fakeSMTP struct {
	ln         net.Listener
	rejectRcpt bool

	mu    sync.Mutex
	from  []string
	rcpts []string
	data  []string
}

func startFakeSMTP(t *testing.T, rejectRcpt bool) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	f := &fakeSMTP{ln: ln, rejectRcpt: rejectRcpt}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go f.serve(conn)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeSMTP) config() config.SMTPConfig {
	host, port, _ := net.SplitHostPort(f.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return config.SMTPConfig{Host: host, Port: p}
}

func (f *fakeSMTP) serve(conn net.Conn) {
	defer conn.Close()
	tp := textproto.NewConn(conn)
	tp.PrintfLine("220 fake ESMTP ready")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.Fields(line + " x")[0])
		switch verb {
		case "EHLO", "HELO":
			tp.PrintfLine("250-fake greets you")
			tp.PrintfLine("250 HELP")
		case "MAIL":
			f.mu.Lock()
			f.from = append(f.from, line)
			f.mu.Unlock()
			tp.PrintfLine("250 OK")
		case "RCPT":
			if f.rejectRcpt {
				tp.PrintfLine("550 no such user")
				continue
			}
			f.mu.Lock()
			f.rcpts = append(f.rcpts, line)
			f.mu.Unlock()
			tp.PrintfLine("250 OK")
		case "DATA":
			tp.PrintfLine("354 end with <CRLF>.<CRLF>")
			lines, err := tp.ReadDotLines()
			if err != nil {
				return
			}
			f.mu.Lock()
			f.data = append(f.data, strings.Join(lines, "\n"))
			f.mu.Unlock()
			tp.PrintfLine("250 OK queued")
		case "RSET", "NOOP":
			tp.PrintfLine("250 OK")
		case "QUIT":
			tp.PrintfLine("221 bye")
			return
		default:
			tp.PrintfLine("502 not implemented")
		}
	}
}

func (f *fakeSMTP) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.data...)
}

func testMessage() Message {
	return Message{
		From:    "invites@example.com",
		To:      "ann.seller@example.com",
		Subject: "[IdeaMarket] Go API — Invitation to propose",
		Text:    "Hi Ann,\n\nAccept: http://localhost:4000/api/invite/i1/accept",
		HTML:    "<p>Hi Ann,</p>",
	}
}

func TestSMTPMailer_Send(t *testing.T) {
	srv := startFakeSMTP(t, false)
	m := NewSMTPMailer(srv.config(), logger.NewTestLogger(t))

	id, err := m.Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, ".annseller@127.0.0.1>"), id)

	data := srv.received()
	require.Len(t, data, 1)
	assert.Contains(t, data[0], "Message-ID: "+id)
	assert.Contains(t, data[0], "To: ann.seller@example.com")
	assert.Contains(t, data[0], "Subject: =?utf-8?q?")
	assert.Contains(t, data[0], "multipart/alternative")
	assert.Contains(t, data[0], "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, data[0], "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, data[0], "Hi Ann,")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.rcpts, 1)
	assert.Contains(t, srv.rcpts[0], "<ann.seller@example.com>")
}

func TestSMTPMailer_RecipientRejected(t *testing.T) {
	srv := startFakeSMTP(t, true)
	m := NewSMTPMailer(srv.config(), logger.NewNoOpLogger())

	_, err := m.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set recipient")
	assert.Empty(t, srv.received())
}

func TestSMTPMailer_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: addr.Port}, logger.NewNoOpLogger())
	_, err = m.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to SMTP server")

	assert.Error(t, m.Verify(context.Background()))
}

func TestSMTPMailer_CancelledContext(t *testing.T) {
	srv := startFakeSMTP(t, false)
	m := NewSMTPMailer(srv.config(), logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Send(ctx, testMessage())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSMTPMailer_Verify(t *testing.T) {
	srv := startFakeSMTP(t, false)
	m := NewSMTPMailer(srv.config(), logger.NewNoOpLogger())
	assert.NoError(t, m.Verify(context.Background()))
}

func TestSMTPMailer_InvalidAddress(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1}, logger.NewNoOpLogger())
	msg := testMessage()
	msg.To = "not-an-address"
	_, err := m.Send(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid 'to' email address")
}

func TestBuildMIMEMessage_SkipsEmptyParts(t *testing.T) {
	msg := testMessage()
	msg.HTML = ""
	body, err := buildMIMEMessage(msg, "<1.x@h>", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "Date: Fri, 02 Jan 2026 03:04:05 +0000")
	assert.Contains(t, s, "text/plain")
	assert.NotContains(t, s, "text/html")
}

func TestSanitizeLocalPart(t *testing.T) {
	assert.Equal(t, "annseller", sanitizeLocalPart("ann.seller@example.com"))
	assert.Equal(t, "abcdefghij", sanitizeLocalPart("abcdefghijklmn@x.io"))
	assert.Equal(t, "user", sanitizeLocalPart("..@x.io"))
}

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*ses.SendEmailOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestSESMailer_Send(t *testing.T) {
	client := new(mockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "invites@example.com" &&
			in.Destination.ToAddresses[0] == "ann.seller@example.com" &&
			aws.ToString(in.Message.Subject.Data) == "[IdeaMarket] Go API — Invitation to propose" &&
			aws.ToString(in.Message.Body.Html.Data) == "<p>Hi Ann,</p>"
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("ses-123")}, nil)

	id, err := NewSESMailer(client, logger.NewNoOpLogger()).Send(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, "ses-123", id)
	client.AssertExpectations(t)
}

func TestSESMailer_Failure(t *testing.T) {
	client := new(mockSES)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("MessageRejected: Email address is not verified"))

	_, err := NewSESMailer(client, logger.NewNoOpLogger()).Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MessageRejected")
}
