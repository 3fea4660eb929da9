package clients

import "fmt"

// NotFoundError reports a semantic miss: the service answered successfully
// but has no record for the requested identifier (or the caller's credential
// cannot see it).
type NotFoundError struct {
	What string // "revision", "diff", "user", "repository"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.ID)
}

// CommunicationError reports a transport or decoding failure talking to an
// external service. Distinct from NotFoundError and from a well-formed
// error payload (ConduitError).
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication failure during %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// ConduitError is a well-formed error payload returned by the Phabricator
// conduit API.
type ConduitError struct {
	Code string
	Info string
}

func (e *ConduitError) Error() string {
	return fmt.Sprintf("conduit error %s: %s", e.Code, e.Info)
}
