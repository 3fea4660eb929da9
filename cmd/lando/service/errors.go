package service

import (
	"errors"
	"fmt"
)

// ErrorKind tags a landing failure so the HTTP boundary can map it to a
// response exactly once. Business logic tests against kinds, never against
// response codes.
type ErrorKind int

const (
	KindRevisionNotFound ErrorKind = iota
	KindDiffNotFound
	KindDiffNotInRevision
	KindInactiveDiff
	KindOverrideMismatch
	KindMultipleParents
	KindCircularDependency
	KindSubmissionFailed
	KindCommunicationFailure
	KindLandingNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindRevisionNotFound:
		return "revision not found"
	case KindDiffNotFound:
		return "diff not found"
	case KindDiffNotInRevision:
		return "diff not related to the revision"
	case KindInactiveDiff:
		return "inactive diff"
	case KindOverrideMismatch:
		return "overriding inactive diff"
	case KindMultipleParents:
		return "multiple parent revisions"
	case KindCircularDependency:
		return "circular revision dependencies"
	case KindSubmissionFailed:
		return "landing not created"
	case KindCommunicationFailure:
		return "communication failure"
	case KindLandingNotFound:
		return "landing not found"
	default:
		return "unknown error"
	}
}

// Error is the tagged domain error for the landing lifecycle
type Error struct {
	Kind ErrorKind

	RevisionID     int
	DiffID         int
	ActiveDiffID   int
	OverrideDiffID int

	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the error kind; ok is false for non-domain errors
func KindOf(err error) (ErrorKind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
