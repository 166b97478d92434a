// Package service owns the invitation lifecycle: creating invitations for the
// top-ranked sellers, emailing them, and applying accept, reject and offer
// transitions.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/common/logger"
	"ideamarket/internal/common/metrics"
	"ideamarket/internal/common/observability"
	"ideamarket/internal/invitations/mailer"
	"ideamarket/internal/invitations/store"
	"ideamarket/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Dependencies are the collaborators a Service is built from. Events and
// Observability are optional.
type Dependencies struct {
	Store         store.Store
	Mailer        mailer.Mailer
	Events        EventPublisher
	Observability *observability.Observability
	Logger        logger.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

type Service struct {
	config *Config
	store  store.Store
	mailer mailer.Mailer
	events EventPublisher
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

// CreateResult is what CreateInvites returns to the caller.
type CreateResult struct {
	Invites []*models.Invitation `json:"invites"`
	Sent    int                  `json:"sent"`
	Draft   bool                 `json:"draft"`
}

func New(cfg *Config, deps Dependencies) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %w", err)
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}

	s := &Service{
		config: cfg,
		store:  deps.Store,
		mailer: deps.Mailer,
		events: deps.Events,
		obs:    deps.Observability,
		logger: logger.Component(deps.Logger, "invite-service"),
		now:    deps.Now,
		newID:  deps.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// Config returns the active configuration.
func (s *Service) Config() Config {
	return *s.config
}

// AcceptURL is the capability link that accepts invite id.
func (s *Service) AcceptURL(id string) string {
	return fmt.Sprintf("%s/api/invite/%s/accept", s.config.BaseURL, url.PathEscape(id))
}

// RejectURL is the capability link that rejects invite id.
func (s *Service) RejectURL(id string) string {
	return fmt.Sprintf("%s/api/invite/%s/reject", s.config.BaseURL, url.PathEscape(id))
}

// CreateInvites creates one invitation for each of the top N candidates that
// have an email address, ordered by score with ties in input order. Unless
// draft is set each invitation is emailed; a failed send marks that
// invitation as error and never fails the call.
func (s *Service) CreateInvites(ctx context.Context, project *models.Project, ranked []models.RankedSeller, draft bool) (result *CreateResult, err error) {
	if project == nil || ranked == nil {
		return nil, apperrors.NewInvalidPayloadError("{ project, rankedSellers[] } required")
	}

	ctx, done := s.begin(ctx, "notify", attribute.String("project.id", project.ID), attribute.Bool("draft", draft))
	defer func() { done(err) }()

	mailCtx := ctx
	if s.config.BatchTimeout > 0 && !draft {
		var cancel context.CancelFunc
		mailCtx, cancel = context.WithTimeout(ctx, s.config.BatchTimeout)
		defer cancel()
	}

	picks := topCandidates(ranked, s.config.TopN)
	result = &CreateResult{Invites: make([]*models.Invitation, 0, len(picks)), Draft: draft}

	for _, pick := range picks {
		inv := s.newInvitation(project, pick, draft)
		if err := s.store.Prepend(ctx, inv); err != nil {
			return nil, err
		}
		metrics.InvitesCreated.WithLabelValues(string(inv.Status)).Inc()

		if !draft {
			inv, err = s.deliverInvite(ctx, mailCtx, project, inv)
			if err != nil {
				return nil, err
			}
		}
		if inv.Status == models.StatusSent {
			result.Sent++
		}
		result.Invites = append(result.Invites, inv)
		s.publish(ctx, EventInviteCreated, inv)
	}

	s.logger.Info("Invites created", map[string]interface{}{
		"projectId":  project.ID,
		"candidates": len(ranked),
		"created":    len(result.Invites),
		"sent":       result.Sent,
		"draft":      draft,
	})
	return result, nil
}

func (s *Service) newInvitation(project *models.Project, pick models.RankedSeller, draft bool) *models.Invitation {
	status := models.StatusSent
	if draft {
		status = models.StatusDraft
	}
	overlap := pick.Overlap
	if overlap == nil {
		overlap = []string{}
	}
	return &models.Invitation{
		ID:           s.newID(),
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		SellerID:     pick.SellerID,
		SellerName:   pick.Name,
		SellerEmail:  pick.Email,
		Score:        pick.Score,
		Overlap:      append([]string{}, overlap...),
		Status:       status,
		CreatedAt:    s.now().UTC(),
	}
}

func (s *Service) deliverInvite(ctx, mailCtx context.Context, project *models.Project, inv *models.Invitation) (*models.Invitation, error) {
	msg, err := mailer.RenderInvite(mailer.InviteEmail{
		SellerName:   inv.SellerName,
		ProjectTitle: project.Title,
		Category:     project.Category,
		Deadline:     project.Deadline,
		Score:        inv.Score,
		Overlap:      inv.Overlap,
		AcceptURL:    s.AcceptURL(inv.ID),
		RejectURL:    s.RejectURL(inv.ID),
	})
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("render invite email: %w", err))
	}
	return s.dispatch(ctx, mailCtx, "invite", inv, models.StatusSent, msg)
}

// Accept marks the invitation accepted.
func (s *Service) Accept(ctx context.Context, id string) (*models.Invitation, error) {
	return s.transition(ctx, models.ActionAccept, id, func(inv *models.Invitation) error {
		return inv.Accept(s.now().UTC(), s.config.StrictTransitions)
	})
}

// Reject marks the invitation rejected.
func (s *Service) Reject(ctx context.Context, id string) (*models.Invitation, error) {
	return s.transition(ctx, models.ActionReject, id, func(inv *models.Invitation) error {
		return inv.Reject(s.now().UTC(), s.config.StrictTransitions)
	})
}

// Offer attaches an admin price offer and, when sendEmail is set, emails it
// to the seller. A failed send marks the invitation as error but keeps the
// offer fields.
func (s *Service) Offer(ctx context.Context, id string, price json.RawMessage, note string, sendEmail bool) (*models.Invitation, error) {
	inv, err := s.transition(ctx, models.ActionOffer, id, func(inv *models.Invitation) error {
		return inv.ApplyOffer(price, note, s.now().UTC(), s.config.StrictTransitions)
	})
	if err != nil || !sendEmail {
		return inv, err
	}

	title := inv.ProjectTitle
	if title == "" {
		title = inv.ProjectID
	}
	msg, err := mailer.RenderOffer(mailer.OfferEmail{
		SellerName:   inv.SellerName,
		ProjectTitle: title,
		Price:        inv.PriceText(),
		Note:         inv.OfferNote,
		AcceptURL:    s.AcceptURL(inv.ID),
		RejectURL:    s.RejectURL(inv.ID),
	})
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("render offer email: %w", err))
	}
	return s.dispatch(ctx, ctx, "offer", inv, models.StatusOffered, msg)
}

func (s *Service) transition(ctx context.Context, action, id string, apply func(*models.Invitation) error) (inv *models.Invitation, err error) {
	ctx, done := s.begin(ctx, action, attribute.String("invite.id", id))
	defer func() { done(err) }()

	inv, err = s.store.Update(ctx, id, apply)
	metrics.InviteTransitions.WithLabelValues(action, resultLabel(err)).Inc()
	if err != nil {
		s.logger.Warn("Invite transition refused", map[string]interface{}{
			"inviteId": id,
			"action":   action,
			"error":    err.Error(),
		})
		return nil, err
	}

	s.logger.Info("Invite updated", map[string]interface{}{
		"inviteId":  id,
		"projectId": inv.ProjectID,
		"action":    action,
		"status":    string(inv.Status),
	})
	s.publish(ctx, eventFor(action), inv)
	return inv, nil
}

// dispatch sends msg to the invitation's seller under mailCtx and the mail
// timeout, then records the outcome on the stored invitation using ctx. expect is the status the
// invitation held when the send was triggered; if a concurrent transition
// moved it on, a failure only records the error text.
func (s *Service) dispatch(ctx, mailCtx context.Context, kind string, inv *models.Invitation, expect models.InviteStatus, msg mailer.Message) (*models.Invitation, error) {
	msg.From = s.config.FromEmail
	msg.To = inv.SellerEmail

	sendCtx := mailCtx
	if s.config.MailTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(mailCtx, s.config.MailTimeout)
		defer cancel()
	}

	start := time.Now()
	messageID, sendErr := s.mailer.Send(sendCtx, msg)
	metrics.MailDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.MailSends.WithLabelValues(kind, resultLabel(sendErr)).Inc()

	var mailErr *apperrors.StandardError
	if sendErr != nil {
		mailErr = apperrors.NewMailDispatchError(inv.SellerEmail, sendErr)
		s.logger.Error("Mail dispatch failed", map[string]interface{}{
			"inviteId": inv.ID,
			"kind":     kind,
			"to":       inv.SellerEmail,
			"error":    sendErr.Error(),
		})
	}

	updated, err := s.store.Update(ctx, inv.ID, func(cur *models.Invitation) error {
		switch {
		case mailErr == nil:
			cur.RecordDelivery(messageID)
		case cur.Status == expect:
			cur.RecordFailure(sendErr)
		default:
			cur.Error = sendErr.Error()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mailErr != nil {
		s.publish(ctx, EventMailFailed, updated)
	}
	return updated, nil
}

// ByProject lists a project's invitations, newest first.
func (s *Service) ByProject(ctx context.Context, projectID string) ([]*models.Invitation, error) {
	return s.store.ListByProject(ctx, projectID)
}

// BySeller lists a seller's invitations ordered by most recent activity:
// acceptedAt, else offeredAt, else createdAt, newest first.
func (s *Service) BySeller(ctx context.Context, sellerID string) ([]*models.Invitation, error) {
	list, err := s.store.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].LastActivity().After(list[j].LastActivity())
	})
	return list, nil
}

// topCandidates keeps candidates with an email, stable-sorted by score
// descending, truncated to n.
func topCandidates(ranked []models.RankedSeller, n int) []models.RankedSeller {
	picks := make([]models.RankedSeller, 0, len(ranked))
	for _, r := range ranked {
		if r.Email != "" {
			picks = append(picks, r)
		}
	}
	sort.SliceStable(picks, func(i, j int) bool { return picks[i].Score > picks[j].Score })
	if len(picks) > n {
		picks = picks[:n]
	}
	return picks
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.obs.StartSpan(ctx, "invites."+op, attrs...)
	return ctx, func(err error) {
		s.obs.RecordOperation(ctx, op, resultLabel(err), time.Since(start))
		observability.EndSpan(span, err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, inv *models.Invitation) {
	if s.events == nil {
		return
	}
	evt := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		InviteID:  inv.ID,
		ProjectID: inv.ProjectID,
		SellerID:  inv.SellerID,
		Status:    string(inv.Status),
		At:        s.now().UTC(),
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.logger.Warn("Event publish failed", map[string]interface{}{
			"eventType": eventType,
			"inviteId":  inv.ID,
			"error":     err.Error(),
		})
	}
}

func eventFor(action string) string {
	switch action {
	case models.ActionAccept:
		return EventInviteAccepted
	case models.ActionReject:
		return EventInviteRejected
	default:
		return EventInviteOffered
	}
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if stdErr, ok := apperrors.As(err); ok {
		return string(stdErr.Code)
	}
	return "error"
}
