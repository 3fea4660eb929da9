package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type testLogger struct{}

func (testLogger) Info(msg string, kv ...interface{})  {}
func (testLogger) Error(msg string, kv ...interface{}) {}
func (testLogger) Warn(msg string, kv ...interface{})  {}
func (testLogger) Debug(msg string, kv ...interface{}) {}

func conduitServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[len("/api/"):]
		body, ok := responses[method]
		if !ok {
			t.Errorf("unexpected conduit method %q", method)
			body = `{"result": null, "error_code": "ERR-CONDUIT-CALL", "error_info": "unknown method"}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func newTestClient(srv *httptest.Server) *PhabricatorClient {
	return NewPhabricatorClient(srv.URL, "api-key-123", NewHTTPClient(srv.Client(), testLogger{}), testLogger{})
}

const revisionD1 = `{
	"result": [{
		"id": "1",
		"phid": "PHID-DREV-1",
		"title": "Fix the frobnicator",
		"summary": "Longer explanation.",
		"uri": "https://phabricator.test/D1",
		"status": "2",
		"statusName": "Accepted",
		"authorPHID": "PHID-USER-1",
		"activeDiffPHID": "PHID-DIFF-5",
		"repositoryPHID": "PHID-REPO-1",
		"dateModified": "1496239141",
		"auxiliary": {"phabricator:depends-on": ["PHID-DREV-2"], "bugzilla.bug-id": "1050"}
	}],
	"error_code": null,
	"error_info": null
}`

func TestGetRevision(t *testing.T) {
	srv := conduitServer(t, map[string]string{"differential.query": revisionD1})
	defer srv.Close()

	rev, err := newTestClient(srv).GetRevision(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetRevision failed: %v", err)
	}

	if rev.ID != 1 {
		t.Errorf("Expected id 1, got %d", rev.ID)
	}
	if rev.ActiveDiffPHID != "PHID-DIFF-5" {
		t.Errorf("Expected active diff PHID-DIFF-5, got %s", rev.ActiveDiffPHID)
	}
	if !rev.Status.Open() {
		t.Error("Accepted revision should be open")
	}
	if rev.BugID != 1050 {
		t.Errorf("Expected bug 1050, got %d", rev.BugID)
	}
	if len(rev.DependsOnPHIDs) != 1 || rev.DependsOnPHIDs[0] != "PHID-DREV-2" {
		t.Errorf("Unexpected dependencies: %v", rev.DependsOnPHIDs)
	}
}

func TestGetRevision_NotFound(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"differential.query": `{"result": [], "error_code": null, "error_info": null}`,
	})
	defer srv.Close()

	_, err := newTestClient(srv).GetRevision(context.Background(), 999)

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
	if notFound.ID != "D999" {
		t.Errorf("Expected D999, got %s", notFound.ID)
	}
}

func TestGetRevision_ConduitError(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"differential.query": `{"result": null, "error_code": "ERR-INVALID-AUTH", "error_info": "bad token"}`,
	})
	defer srv.Close()

	_, err := newTestClient(srv).GetRevision(context.Background(), 1)

	var conduitErr *ConduitError
	if !errors.As(err, &conduitErr) {
		t.Fatalf("Expected ConduitError, got %v", err)
	}
	if conduitErr.Code != "ERR-INVALID-AUTH" {
		t.Errorf("Expected ERR-INVALID-AUTH, got %s", conduitErr.Code)
	}
}

func TestGetRevision_MalformedPayload(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"differential.query": `{"result": [{"id": "not-a-number"}], "error_code": null, "error_info": null}`,
	})
	defer srv.Close()

	_, err := newTestClient(srv).GetRevision(context.Background(), 1)

	var comm *CommunicationError
	if !errors.As(err, &comm) {
		t.Fatalf("Expected CommunicationError for malformed payload, got %v", err)
	}
}

func TestGetDiff(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"differential.querydiffs": `{"result": {"5": {"id": "5", "revisionID": "1", "dateModified": "1496239141"}}, "error_code": null, "error_info": null}`,
	})
	defer srv.Close()

	diff, err := newTestClient(srv).GetDiff(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetDiff failed: %v", err)
	}
	if diff.ID != 5 || diff.RevisionID != 1 {
		t.Errorf("Unexpected diff: %+v", diff)
	}
}

func TestGetDiff_EmptyResultIsNotFound(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"differential.querydiffs": `{"result": [], "error_code": null, "error_info": null}`,
	})
	defer srv.Close()

	_, err := newTestClient(srv).GetDiff(context.Background(), 9)

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
}

func TestGetRawDiff_NotFound(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"differential.getrawdiff": `{"result": "", "error_code": null, "error_info": null}`,
	})
	defer srv.Close()

	_, err := newTestClient(srv).GetRawDiff(context.Background(), 9)

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected NotFoundError, got %v", err)
	}
}

func TestDiffPHIDToID(t *testing.T) {
	srv := conduitServer(t, map[string]string{
		"phid.query": `{"result": {"PHID-DIFF-5": {"uri": "https://phabricator.test/differential/diff/43480/"}}, "error_code": null, "error_info": null}`,
	})
	defer srv.Close()

	id, err := newTestClient(srv).DiffPHIDToID(context.Background(), "PHID-DIFF-5")
	if err != nil {
		t.Fatalf("DiffPHIDToID failed: %v", err)
	}
	if id != 43480 {
		t.Errorf("Expected 43480, got %d", id)
	}
}

func TestExtractDiffIDFromURI(t *testing.T) {
	if _, err := extractDiffIDFromURI("https://phabricator.test/something/else/123/"); err == nil {
		t.Error("Expected error for unrecognized URI layout")
	}

	id, err := extractDiffIDFromURI("https://phabricator.test/differential/diff/77/")
	if err != nil {
		t.Fatalf("extractDiffIDFromURI failed: %v", err)
	}
	if id != 77 {
		t.Errorf("Expected 77, got %d", id)
	}
}

func TestCommunicationFailureOnTransportError(t *testing.T) {
	srv := conduitServer(t, nil)
	client := newTestClient(srv)
	srv.Close() // connection refused from here on

	_, err := client.GetRevision(context.Background(), 1)

	var comm *CommunicationError
	if !errors.As(err, &comm) {
		t.Fatalf("Expected CommunicationError, got %v", err)
	}
}
