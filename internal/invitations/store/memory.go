// internal/invitations/store/memory.go
package store

import (
	"context"
	"sync"

	"ideamarket/internal/models"
)

// MemoryStore is the default, process-local backend. Contents are lost on
// restart. One RWMutex guards everything, so concurrent mutations of a
// project's invitations serialize.
type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]*models.Invitation
	projects map[string][]string // project id -> invite ids, newest first
	order    []string            // project ids in first-seen order
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]*models.Invitation),
		projects: make(map[string][]string),
	}
}

func (s *MemoryStore) Prepend(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, seen := s.projects[inv.ProjectID]
	if !seen {
		s.order = append(s.order, inv.ProjectID)
	}
	s.projects[inv.ProjectID] = append([]string{inv.ID}, ids...)
	s.byID[inv.ID] = inv.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.byID[id]
	if !ok {
		return nil, notFound(id)
	}
	return inv.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*models.Invitation) error) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return nil, notFound(id)
	}

	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.byID[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) ListByProject(_ context.Context, projectID string) ([]*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.projects[projectID]
	out := make([]*models.Invitation, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) ListBySeller(_ context.Context, sellerID string) ([]*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Invitation{}
	for _, projectID := range s.order {
		for _, id := range s.projects[projectID] {
			if inv := s.byID[id]; inv.SellerID == sellerID {
				out = append(out, inv.Clone())
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
