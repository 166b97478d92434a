// Package api exposes the notification service over HTTP: invitation
// creation, capability-link confirmations, offers and queries.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/common/logger"
	"ideamarket/internal/invitations/service"
	"ideamarket/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invites is the part of the notification service the handlers call.
type Invites interface {
	CreateInvites(ctx context.Context, project *models.Project, ranked []models.RankedSeller, draft bool) (*service.CreateResult, error)
	Accept(ctx context.Context, id string) (*models.Invitation, error)
	Reject(ctx context.Context, id string) (*models.Invitation, error)
	Offer(ctx context.Context, id string, price json.RawMessage, note string, sendEmail bool) (*models.Invitation, error)
	ByProject(ctx context.Context, projectID string) ([]*models.Invitation, error)
	BySeller(ctx context.Context, sellerID string) ([]*models.Invitation, error)
}

type Options struct {
	// ClientURL is the only origin allowed by CORS.
	ClientURL string
	// BaseURL is shown on the index page.
	BaseURL string
	// Metrics serves /metrics; nil means promhttp.Handler().
	Metrics http.Handler
	Logger  logger.Logger
}

type Server struct {
	invites Invites
	opts    Options
	log     logger.Logger
	errors  *apperrors.ErrorHandler
}

func NewServer(invites Invites, opts Options) *Server {
	log := logger.Component(opts.Logger, "api")
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	return &Server{
		invites: invites,
		opts:    opts,
		log:     log,
		errors:  apperrors.NewErrorHandler(log),
	}
}

// Handler returns the routed, instrumented handler tree.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/notify-sellers", s.handleNotifySellers)
	mux.HandleFunc("GET /api/invite/{id}/accept", s.handleAcceptPage)
	mux.HandleFunc("GET /api/invite/{id}/reject", s.handleRejectPage)
	mux.HandleFunc("POST /api/invite/{id}/accept", s.handleAccept)
	mux.HandleFunc("POST /api/invite/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/invite/{id}/offer", s.handleOffer)
	mux.HandleFunc("GET /api/project/{id}/invites", s.handleProjectInvites)
	mux.HandleFunc("GET /api/seller/{sellerId}/invites", s.handleSellerInvites)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/test-email", s.handleTestEmail)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /metrics", s.opts.Metrics)

	return Chain(mux,
		RecoverPanic(s.log),
		Instrument(s.log),
		CORS(s.opts.ClientURL),
	)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
