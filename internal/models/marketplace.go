// internal/models/marketplace.go
package models

import (
	"encoding/json"
	"time"
)

// SellerProfile is a seller's declared qualifications.
type SellerProfile struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Skills     []string `json:"skills"`
	Categories []string `json:"categories"`
}

// ProjectStatus is the admin review state of a buyer's project.
type ProjectStatus string

const (
	ProjectPending     ProjectStatus = "pending"
	ProjectApproved    ProjectStatus = "approved"
	ProjectRejected    ProjectStatus = "rejected"
	ProjectShortlisted ProjectStatus = "shortlisted"
	ProjectAccepted    ProjectStatus = "accepted"
)

// HistoryEntry is one append-only audit line on a project.
type HistoryEntry struct {
	At     time.Time `json:"at"`
	By     string    `json:"by"`
	Action string    `json:"action"`
	Note   string    `json:"note"`
}

// Project is a buyer's idea as submitted for matching.
type Project struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category"`
	Skills      []string        `json:"skills"`
	Budget      json.RawMessage `json:"budget,omitempty"`
	Deadline    string          `json:"deadline,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	Status      ProjectStatus   `json:"status,omitempty"`
	History     []HistoryEntry  `json:"history,omitempty"`
}

// Normalize backfills fields older stored shapes lack: empty skills, a
// pending status and a single "created" history entry.
func (p *Project) Normalize() {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	if p.Status == "" {
		p.Status = ProjectPending
	}
	if len(p.History) == 0 {
		by := p.UserID
		if by == "" {
			by = "system"
		}
		p.History = []HistoryEntry{{At: p.CreatedAt, By: by, Action: "created"}}
	}
}

// AppendHistory moves the project to status and appends the matching history
// entry. History is never rewritten.
func (p *Project) AppendHistory(status ProjectStatus, by, note string, at time.Time) {
	p.Status = status
	p.History = append(p.History, HistoryEntry{At: at, By: by, Action: string(status), Note: note})
}

// RankedSeller is the candidate shape posted to notify-sellers.
type RankedSeller struct {
	SellerID string   `json:"sellerId"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Score    int      `json:"score"`
	Overlap  []string `json:"overlap"`
}
