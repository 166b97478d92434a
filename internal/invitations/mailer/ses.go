// internal/invitations/mailer/ses.go
package mailer

import (
	"context"
	"fmt"

	"ideamarket/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the subset of the SES client used here, narrowed for mocks.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESMailer sends through Amazon SES.
type SESMailer struct {
	client SESService
	logger logger.Logger
}

func NewSESMailer(client SESService, log logger.Logger) *SESMailer {
	return &SESMailer{client: client, logger: logger.Component(log, "ses-mailer")}
}

func (m *SESMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	body := &types.Body{}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")}
	}

	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
			Body:    body,
		},
		Source: aws.String(msg.From),
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}

	id := aws.ToString(out.MessageId)
	m.logger.Debug("Email sent", map[string]interface{}{"to": msg.To, "messageId": id})
	return id, nil
}
