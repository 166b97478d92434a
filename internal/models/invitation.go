// internal/models/invitation.go
package models

import (
	"encoding/json"
	"strconv"
	"time"

	apperrors "ideamarket/internal/common/errors"
)

// InviteStatus is the lifecycle state of an Invitation.
type InviteStatus string

const (
	StatusDraft    InviteStatus = "draft"
	StatusSent     InviteStatus = "sent"
	StatusOffered  InviteStatus = "offered"
	StatusAccepted InviteStatus = "accepted"
	StatusRejected InviteStatus = "rejected"
	StatusError    InviteStatus = "error"
)

// Actions that move an invitation between states.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
	ActionOffer  = "offer"
)

// Valid reports whether s is one of the six known states.
func (s InviteStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusOffered, StatusAccepted, StatusRejected, StatusError:
		return true
	}
	return false
}

// Terminal reports whether the seller has already answered.
func (s InviteStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanAnswer reports whether a seller may accept or reject from s.
func (s InviteStatus) CanAnswer() bool {
	return s == StatusDraft || s == StatusSent || s == StatusOffered
}

// CanOffer reports whether an admin may attach an offer from s.
func (s InviteStatus) CanOffer() bool {
	return s.CanAnswer() || s == StatusError
}

// Invitation links one project to one candidate seller. Seller and project
// fields are snapshots taken at creation.
type Invitation struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"projectId"`
	ProjectTitle string          `json:"projectTitle"`
	SellerID     string          `json:"sellerId"`
	SellerName   string          `json:"sellerName"`
	SellerEmail  string          `json:"sellerEmail"`
	Score        int             `json:"score"`
	Overlap      []string        `json:"overlap"`
	Status       InviteStatus    `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	OfferedPrice json.RawMessage `json:"offeredPrice,omitempty"`
	OfferNote    string          `json:"offerNote,omitempty"`
	OfferedAt    *time.Time      `json:"offeredAt,omitempty"`
	AcceptedAt   *time.Time      `json:"acceptedAt,omitempty"`
	RejectedAt   *time.Time      `json:"rejectedAt,omitempty"`
	MessageID    string          `json:"messageId,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Accept records the seller's acceptance. With strict set, answering from a
// state other than draft/sent/offered is an InvalidTransition; without it
// the status and timestamp are overwritten unconditionally.
func (inv *Invitation) Accept(at time.Time, strict bool) error {
	if strict && !inv.Status.CanAnswer() {
		return apperrors.NewInvalidTransitionError(string(inv.Status), ActionAccept)
	}
	inv.Status = StatusAccepted
	inv.AcceptedAt = timePtr(at)
	return nil
}

// Reject records the seller's rejection. See Accept for strict.
func (inv *Invitation) Reject(at time.Time, strict bool) error {
	if strict && !inv.Status.CanAnswer() {
		return apperrors.NewInvalidTransitionError(string(inv.Status), ActionReject)
	}
	inv.Status = StatusRejected
	inv.RejectedAt = timePtr(at)
	return nil
}

// ApplyOffer attaches an admin price offer and moves the invite to offered.
func (inv *Invitation) ApplyOffer(price json.RawMessage, note string, at time.Time, strict bool) error {
	if strict && !inv.Status.CanOffer() {
		return apperrors.NewInvalidTransitionError(string(inv.Status), ActionOffer)
	}
	inv.OfferedPrice = append(json.RawMessage(nil), price...)
	inv.OfferNote = note
	inv.OfferedAt = timePtr(at)
	inv.Status = StatusOffered
	return nil
}

// RecordDelivery stores the transport's message id after a successful send.
func (inv *Invitation) RecordDelivery(messageID string) {
	inv.MessageID = messageID
	inv.Error = ""
}

// RecordFailure flips the invite to error, keeping every other field.
func (inv *Invitation) RecordFailure(err error) {
	inv.Status = StatusError
	inv.Error = err.Error()
}

// LastActivity is acceptedAt, else offeredAt, else createdAt.
func (inv *Invitation) LastActivity() time.Time {
	switch {
	case inv.AcceptedAt != nil:
		return *inv.AcceptedAt
	case inv.OfferedAt != nil:
		return *inv.OfferedAt
	default:
		return inv.CreatedAt
	}
}

// PriceText renders the offered price for humans: JSON strings unquoted,
// numbers verbatim, empty when no offer was made.
func (inv *Invitation) PriceText() string {
	if len(inv.OfferedPrice) == 0 || string(inv.OfferedPrice) == "null" {
		return ""
	}
	if s, err := strconv.Unquote(string(inv.OfferedPrice)); err == nil {
		return s
	}
	return string(inv.OfferedPrice)
}

// Clone returns a deep copy safe to hand outside a store's lock.
func (inv *Invitation) Clone() *Invitation {
	out := *inv
	if inv.Overlap != nil {
		out.Overlap = append([]string(nil), inv.Overlap...)
	}
	if inv.OfferedPrice != nil {
		out.OfferedPrice = append(json.RawMessage(nil), inv.OfferedPrice...)
	}
	out.OfferedAt = copyTime(inv.OfferedAt)
	out.AcceptedAt = copyTime(inv.AcceptedAt)
	out.RejectedAt = copyTime(inv.RejectedAt)
	return &out
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
