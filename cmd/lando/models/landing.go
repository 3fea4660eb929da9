package models

import (
	"time"

	"github.com/google/uuid"
)

// LandingStatus represents the status of a landing request
type LandingStatus string

const (
	// StatusCreated is transient: the request exists locally but has not
	// been handed to transplant yet.
	StatusCreated LandingStatus = "created"

	// StatusAborted marks a request whose transplant submission failed.
	// Retained for audit; never carries a request id.
	StatusAborted LandingStatus = "aborted"

	StatusSubmitted LandingStatus = "submitted"
	StatusLanded    LandingStatus = "landed"
	StatusFailed    LandingStatus = "failed"
)

// Terminal reports whether no further transition is expected
func (s LandingStatus) Terminal() bool {
	return s == StatusLanded || s == StatusFailed || s == StatusAborted
}

// Landing represents one attempt to land a revision.
// Maps to: landings table
type Landing struct {
	// Local identifier, assigned before submission so the pingback URL
	// can reference it.
	ID uuid.UUID `db:"id" json:"id"`

	// Job id assigned by transplant. Unique and immutable once set;
	// nil for aborted requests.
	RequestID *int64 `db:"request_id" json:"request_id,omitempty"`

	RevisionID int `db:"revision_id" json:"revision_id"`

	// The diff actually landed.
	DiffID int `db:"diff_id" json:"diff_id"`

	// The diff that was active at request time. Only recorded when it
	// differs from DiffID, i.e. when the client forced an override.
	ActiveDiffID *int `db:"active_diff_id" json:"active_diff_id,omitempty"`

	Requester string        `db:"requester" json:"requester"`
	Status    LandingStatus `db:"status" json:"status"`

	// Error and Result are set verbatim from the transplant pingback.
	Error  string `db:"error" json:"error_msg"`
	Result string `db:"result" json:"result"`

	CreatedAt time.Time `db:"created_at" json:"created"`
	UpdatedAt time.Time `db:"updated_at" json:"updated"`

	// Ordered root-ancestor-first; mirrors the dependency chain
	// validated at creation time.
	Patches []*Patch `db:"-" json:"-"`
}

// NewLanding creates a landing request in its pre-submission state
func NewLanding(revisionID, diffID int, requester string) *Landing {
	now := time.Now().UTC()
	return &Landing{
		ID:         uuid.New(),
		RevisionID: revisionID,
		DiffID:     diffID,
		Requester:  requester,
		Status:     StatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Overridden reports whether the landed diff was stale and forced
func (l *Landing) Overridden() bool {
	return l.ActiveDiffID != nil
}
