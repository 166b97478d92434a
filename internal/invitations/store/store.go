// Package store persists invitations. Every backend keeps a per-project list
// ordered newest first and applies mutations as atomic read-modify-write
// operations through Update.
package store

import (
	"context"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/models"
)

// Store is the invitation persistence contract shared by the service and the
// HTTP handlers.
type Store interface {
	// Prepend inserts inv at the head of its project's list.
	Prepend(ctx context.Context, inv *models.Invitation) error
	// Get returns a copy of the invitation or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*models.Invitation, error)
	// Update loads the invitation, applies fn and persists the result
	// atomically with respect to other Updates of the same invitation. If fn
	// returns an error nothing is written and that error is returned.
	Update(ctx context.Context, id string, fn func(inv *models.Invitation) error) (*models.Invitation, error)
	// ListByProject returns the project's invitations newest first. Unknown
	// projects yield an empty, non-nil slice.
	ListByProject(ctx context.Context, projectID string) ([]*models.Invitation, error)
	// ListBySeller returns every invitation addressed to sellerID in no
	// particular order.
	ListBySeller(ctx context.Context, sellerID string) ([]*models.Invitation, error)
	Close() error
}

func notFound(id string) error {
	return apperrors.NewNotFoundError("Invite", id)
}
