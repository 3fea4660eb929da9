package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/autoland/lando/common/clients"
	"github.com/autoland/lando/common/hgexport"
	"github.com/autoland/lando/common/logger"
	"github.com/google/uuid"
)

// Storage names are deterministic per (landing, revision, diff) triple so a
// re-run of the same attempt overwrites rather than accumulates. Collisions
// across triples are impossible; overwrites within one are safe because the
// rendered content is identical.
const patchNameFormat = "D%d_%d_%s.patch"

// PatchAssembler renders diffs into landing-ready patches and stores them
type PatchAssembler struct {
	gateway RevisionGateway
	store   PatchStore
	log     *logger.Logger
}

// NewPatchAssembler creates a new patch assembler
func NewPatchAssembler(gateway RevisionGateway, store PatchStore, log *logger.Logger) *PatchAssembler {
	return &PatchAssembler{
		gateway: gateway,
		store:   store,
		log:     log,
	}
}

// AssembledPatch is one rendered and uploaded patch
type AssembledPatch struct {
	RevisionID int
	DiffID     int
	URL        string
}

// StackEntry pairs a revision with the diff that will be landed for it
type StackEntry struct {
	Revision *clients.Revision
	DiffID   int

	// ClientSupplied marks the topmost entry, whose diff id came from the
	// request rather than the active-diff lookup and therefore needs the
	// diff-belongs-to-revision integrity check.
	ClientSupplied bool
}

// ResolveStack walks the dependency chain of rev and returns the full
// stack to land, ordered oldest ancestor first.
//
// The transplant push API applies patches as a linear sequence, so any
// revision with more than one immediate parent fails the whole operation.
// A revision reappearing during the walk means the dependency data is
// cyclic; that fails too instead of looping forever.
//
// Ancestors land their currently-active diff; only the topmost revision
// lands the caller-supplied diff id.
func (a *PatchAssembler) ResolveStack(ctx context.Context, rev *clients.Revision, diffID int) ([]StackEntry, error) {
	entries := []StackEntry{{Revision: rev, DiffID: diffID, ClientSupplied: true}}
	visited := map[int]bool{rev.ID: true}

	current := rev
	for {
		parents, err := a.gateway.GetDependencies(ctx, current)
		if err != nil {
			return nil, &Error{Kind: KindCommunicationFailure, RevisionID: current.ID, Err: err}
		}

		if len(parents) > 1 {
			return nil, &Error{
				Kind:       KindMultipleParents,
				RevisionID: current.ID,
				Detail:     fmt.Sprintf("revision D%d has %d parents", current.ID, len(parents)),
			}
		}
		if len(parents) == 0 {
			break
		}

		parent := parents[0]
		if visited[parent.ID] {
			return nil, &Error{
				Kind:       KindCircularDependency,
				RevisionID: parent.ID,
				Detail:     fmt.Sprintf("revision D%d appears twice in the dependency chain", parent.ID),
			}
		}
		visited[parent.ID] = true

		activeID, err := a.gateway.ActiveDiffID(ctx, parent)
		if err != nil {
			return nil, gatewayError(err, KindDiffNotFound, parent.ID)
		}

		entries = append(entries, StackEntry{Revision: parent, DiffID: activeID})
		current = parent
	}

	// Walked top-down; the stack lands oldest ancestor first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

// AssembleAndStore renders the patch for one (revision, diff) pair and
// uploads it, returning its stable storage address.
//
// When verifyDiff is set the diff's owning-revision field is checked
// against the revision; this guards against a client-supplied diff id that
// exists but belongs to a different revision.
func (a *PatchAssembler) AssembleAndStore(ctx context.Context, landingID uuid.UUID, rev *clients.Revision, diffID int, verifyDiff bool) (*AssembledPatch, error) {
	rawDiff, err := a.gateway.GetRawDiff(ctx, diffID)
	if err != nil {
		return nil, gatewayError(err, KindDiffNotFound, diffID)
	}

	if verifyDiff {
		diff, err := a.gateway.GetDiff(ctx, diffID)
		if err != nil {
			return nil, gatewayError(err, KindDiffNotFound, diffID)
		}
		if diff.RevisionID != rev.ID {
			return nil, &Error{
				Kind:       KindDiffNotInRevision,
				RevisionID: rev.ID,
				DiffID:     diffID,
				Detail:     fmt.Sprintf("diff %d belongs to revision D%d", diffID, diff.RevisionID),
			}
		}
	}

	author, err := a.gateway.GetRevisionAuthor(ctx, rev)
	if err != nil {
		return nil, &Error{Kind: KindCommunicationFailure, RevisionID: rev.ID, Err: err}
	}

	commitMessage := hgexport.FormatCommitMessage(rev.Title, rev.BugID, nil, rev.Summary, rev.URI)
	patchText := hgexport.BuildPatchForRevision(rawDiff, author.Identity(), commitMessage, rev.DateModified)

	name := fmt.Sprintf(patchNameFormat, rev.ID, diffID, landingID)
	url, err := a.store.Upload(ctx, name, []byte(patchText))
	if err != nil {
		return nil, &Error{Kind: KindCommunicationFailure, RevisionID: rev.ID, DiffID: diffID, Err: err}
	}

	a.log.Info("patch assembled",
		"landing_id", landingID.String(),
		"revision_id", rev.ID,
		"diff_id", diffID,
		"patch_url", url)

	return &AssembledPatch{RevisionID: rev.ID, DiffID: diffID, URL: url}, nil
}

// gatewayError translates a gateway failure into a domain error: semantic
// misses keep their identity, everything else is a communication failure
func gatewayError(err error, notFoundKind ErrorKind, id int) *Error {
	var notFound *clients.NotFoundError
	if errors.As(err, &notFound) {
		e := &Error{Kind: notFoundKind, Detail: notFound.Error()}
		switch notFoundKind {
		case KindRevisionNotFound:
			e.RevisionID = id
		case KindDiffNotFound:
			e.DiffID = id
		}
		return e
	}
	return &Error{Kind: KindCommunicationFailure, Detail: strconv.Itoa(id), Err: err}
}
