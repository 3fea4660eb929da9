package models

import (
	"time"

	"github.com/google/uuid"
)

// Patch represents a rendered, landing-ready patch uploaded to blob storage.
// Created during a landing attempt, uploaded exactly once, immutable after.
// Maps to: patches table
type Patch struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LandingID uuid.UUID `db:"landing_id" json:"landing_id"`

	RevisionID int `db:"revision_id" json:"revision_id"`
	DiffID     int `db:"diff_id" json:"diff_id"`

	// Application order within the stack (1 = oldest ancestor)
	Seq int `db:"seq" json:"seq"`

	// Storage address of the uploaded patch body
	URL string `db:"url" json:"url"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewPatch creates a patch record owned by the given landing request
func NewPatch(landingID uuid.UUID, revisionID, diffID, seq int, url string) *Patch {
	return &Patch{
		ID:         uuid.New(),
		LandingID:  landingID,
		RevisionID: revisionID,
		DiffID:     diffID,
		Seq:        seq,
		URL:        url,
		CreatedAt:  time.Now().UTC(),
	}
}
