package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ideamarket/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Event types published after an invitation changes.
const (
	EventInviteCreated  = "invite.created"
	EventInviteAccepted = "invite.accepted"
	EventInviteRejected = "invite.rejected"
	EventInviteOffered  = "invite.offered"
	EventMailFailed     = "invite.mail_failed"
)

// Event is the payload published for invitation lifecycle changes.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	InviteID  string    `json:"inviteId"`
	ProjectID string    `json:"projectId"`
	SellerID  string    `json:"sellerId"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// EventPublisher receives lifecycle events. Failures are logged by the
// service and never fail the triggering operation.
type EventPublisher interface {
	Publish(ctx context.Context, evt Event) error
}

// SNSService is the subset of the SNS client used here, narrowed for mocks.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher fans events out through an SNS topic.
type SNSPublisher struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client SNSService, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger.Component(log, "sns-publisher"),
	}
}

func (p *SNSPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: aws.String("String"), StringValue: aws.String(evt.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}

	p.logger.Debug("Event published", map[string]interface{}{
		"eventType": evt.Type,
		"inviteId":  evt.InviteID,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
