// Package client is a typed Go client for the IdeaMarket notifier API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "ideamarket/internal/common/http"
	"ideamarket/internal/matching"
	"ideamarket/internal/models"
)

const defaultTimeout = 60 * time.Second

type Client struct {
	baseURL string
	http    *httpclient.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = httpclient.NewClientWith(hc) }
}

// New returns a client for the notifier at baseURL, e.g. http://localhost:4000.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpclient.NewClient(defaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NotifyResult mirrors the notify-sellers response.
type NotifyResult struct {
	OK      bool                 `json:"ok"`
	Invites []*models.Invitation `json:"invites"`
	Sent    int                  `json:"sent"`
	Draft   bool                 `json:"draft"`
}

type notifyRequest struct {
	Project       *models.Project       `json:"project"`
	RankedSellers []models.RankedSeller `json:"rankedSellers"`
	Draft         bool                  `json:"draft"`
}

type offerRequest struct {
	Price     interface{} `json:"price"`
	Note      string      `json:"note"`
	SendEmail bool        `json:"sendEmail"`
}

type inviteResponse struct {
	OK     bool               `json:"ok"`
	Invite *models.Invitation `json:"invite"`
}

type listResponse struct {
	Invites []*models.Invitation `json:"invites"`
}

// NotifySellers creates invitations for the top ranked sellers, emailing
// them unless draft is set.
func (c *Client) NotifySellers(ctx context.Context, project *models.Project, ranked []models.RankedSeller, draft bool) (*NotifyResult, error) {
	if ranked == nil {
		ranked = []models.RankedSeller{}
	}
	var out NotifyResult
	err := c.http.DoJSON(ctx, http.MethodPost, c.url("api", "notify-sellers"),
		notifyRequest{Project: project, RankedSellers: ranked, Draft: draft}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PrepareDrafts ranks sellers for project locally and records draft
// invitations for the best of them without sending any email.
func (c *Client) PrepareDrafts(ctx context.Context, project *models.Project, sellers []models.SellerProfile) (*NotifyResult, error) {
	if project == nil {
		return nil, errors.New("project is required")
	}
	ranked := matching.Candidates(matching.Rank(*project, sellers))
	return c.NotifySellers(ctx, project, ranked, true)
}

func (c *Client) ProjectInvites(ctx context.Context, projectID string) ([]*models.Invitation, error) {
	return c.list(ctx, c.url("api", "project", projectID, "invites"))
}

func (c *Client) SellerInvites(ctx context.Context, sellerID string) ([]*models.Invitation, error) {
	list, err := c.list(ctx, c.url("api", "seller", sellerID, "invites"))
	if err != nil {
		return nil, fmt.Errorf("failed to load seller invites: %w", err)
	}
	return list, nil
}

func (c *Client) AcceptInvite(ctx context.Context, inviteID string) (*models.Invitation, error) {
	return c.invite(ctx, c.url("api", "invite", inviteID, "accept"), nil)
}

func (c *Client) RejectInvite(ctx context.Context, inviteID string) (*models.Invitation, error) {
	return c.invite(ctx, c.url("api", "invite", inviteID, "reject"), nil)
}

// OfferInvite records an offer; price is any JSON-encodable value, usually a
// number or a string.
func (c *Client) OfferInvite(ctx context.Context, inviteID string, price interface{}, note string, sendEmail bool) (*models.Invitation, error) {
	if price == nil {
		return nil, errors.New("price is required")
	}
	return c.invite(ctx, c.url("api", "invite", inviteID, "offer"),
		offerRequest{Price: price, Note: note, SendEmail: sendEmail})
}

// SendOffer records an offer and emails it to the seller.
func (c *Client) SendOffer(ctx context.Context, inviteID string, price interface{}, note string) (*models.Invitation, error) {
	return c.OfferInvite(ctx, inviteID, price, note, true)
}

// Health returns nil when the notifier answers {ok:true}.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url("api", "health"), nil, &out); err != nil {
		return err
	}
	if !out.OK {
		return errors.New("notifier reported not ok")
	}
	return nil
}

func (c *Client) invite(ctx context.Context, u string, body interface{}) (*models.Invitation, error) {
	var out inviteResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, u, body, &out); err != nil {
		return nil, err
	}
	return out.Invite, nil
}

func (c *Client) list(ctx context.Context, u string) ([]*models.Invitation, error) {
	var out listResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return out.Invites, nil
}

func (c *Client) url(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

// StatusCode returns the HTTP status of a failed call, or 0 when err did
// not come from a server response.
func StatusCode(err error) int {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the notifier.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict reports whether err is a refused status transition.
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}
