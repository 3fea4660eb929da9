package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RevisionStatus is the legacy differential status enumeration
type RevisionStatus string

const (
	StatusNeedsReview    RevisionStatus = "0"
	StatusNeedsRevision  RevisionStatus = "1"
	StatusApproved       RevisionStatus = "2"
	StatusClosed         RevisionStatus = "3"
	StatusAbandoned      RevisionStatus = "4"
	StatusChangesPlanned RevisionStatus = "5"
)

// Open reports whether the revision is still under review
func (s RevisionStatus) Open() bool {
	return s != StatusClosed && s != StatusAbandoned
}

// Revision is the validated, read-only view of a differential revision.
// Fetched fresh on every operation; never cached locally.
type Revision struct {
	ID             int
	PHID           string
	Title          string
	Summary        string
	URI            string
	Status         RevisionStatus
	StatusName     string
	AuthorPHID     string
	ActiveDiffPHID string
	RepositoryPHID string
	DateModified   int64
	DependsOnPHIDs []string
	BugID          int // 0 when the revision carries no bug reference
}

// Diff is the validated view of one concrete diff of a revision
type Diff struct {
	ID           int
	RevisionID   int
	DateModified int64
}

// User is the validated view of a Phabricator user
type User struct {
	PHID     string
	UserName string
	RealName string
}

// Identity returns the author identity used in patch headers
func (u *User) Identity() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.UserName
}

// Repo describes a destination repository
type Repo struct {
	PHID      string
	ShortName string
	URI       string
}

// PhabricatorClient talks to Phabricator's Conduit API.
//
// Semantic misses (unknown id, no permission) surface as *NotFoundError.
// Well-formed conduit error payloads surface as *ConduitError. Transport
// and decoding faults surface as *CommunicationError.
type PhabricatorClient struct {
	apiURL   string
	apiToken string
	http     *HTTPClient
	logger   Logger
}

// NewPhabricatorClient creates a conduit client for the given install.
// The token is injected here at construction; nothing in the business
// logic reads ambient configuration.
func NewPhabricatorClient(phabURL, apiToken string, httpClient *HTTPClient, logger Logger) *PhabricatorClient {
	apiURL := strings.TrimRight(phabURL, "/") + "/api/"
	return &PhabricatorClient{
		apiURL:   apiURL,
		apiToken: apiToken,
		http:     httpClient,
		logger:   logger,
	}
}

// WithAPIToken returns a copy of the client using the caller's own token
func (c *PhabricatorClient) WithAPIToken(token string) *PhabricatorClient {
	if token == "" {
		return c
	}
	clone := *c
	clone.apiToken = token
	return &clone
}

type conduitResponse struct {
	Result    json.RawMessage `json:"result"`
	ErrorCode string          `json:"error_code"`
	ErrorInfo string          `json:"error_info"`
}

// callConduit performs one RPC call and returns the raw result payload
func (c *PhabricatorClient) callConduit(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	params.Set("api.token", c.apiToken)

	resp, err := c.http.DoRequest(ctx, http.MethodPost, c.apiURL+method,
		"application/x-www-form-urlencoded", strings.NewReader(params.Encode()))
	if err != nil {
		return nil, &CommunicationError{Op: method, Err: err}
	}
	defer resp.Body.Close()

	var envelope conduitResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &CommunicationError{Op: method, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if envelope.ErrorCode != "" {
		return nil, &ConduitError{Code: envelope.ErrorCode, Info: envelope.ErrorInfo}
	}

	return envelope.Result, nil
}

// Raw conduit payloads. Phabricator serializes most numbers as strings;
// these structs absorb that before validation produces the typed records.

type rawRevision struct {
	ID             string          `json:"id"`
	PHID           string          `json:"phid"`
	Title          string          `json:"title"`
	Summary        string          `json:"summary"`
	URI            string          `json:"uri"`
	Status         string          `json:"status"`
	StatusName     string          `json:"statusName"`
	AuthorPHID     string          `json:"authorPHID"`
	ActiveDiffPHID string          `json:"activeDiffPHID"`
	RepositoryPHID string          `json:"repositoryPHID"`
	DateModified   json.Number     `json:"dateModified"`
	Auxiliary      json.RawMessage `json:"auxiliary"`
}

type rawAuxiliary struct {
	DependsOn []string    `json:"phabricator:depends-on"`
	BugID     json.Number `json:"bugzilla.bug-id"`
}

func (r *rawRevision) validate() (*Revision, error) {
	id, err := strconv.Atoi(r.ID)
	if err != nil || r.PHID == "" || r.ActiveDiffPHID == "" {
		return nil, fmt.Errorf("malformed revision payload (id=%q phid=%q)", r.ID, r.PHID)
	}

	modified, _ := r.DateModified.Int64()

	rev := &Revision{
		ID:             id,
		PHID:           r.PHID,
		Title:          r.Title,
		Summary:        r.Summary,
		URI:            r.URI,
		Status:         RevisionStatus(r.Status),
		StatusName:     r.StatusName,
		AuthorPHID:     r.AuthorPHID,
		ActiveDiffPHID: r.ActiveDiffPHID,
		RepositoryPHID: r.RepositoryPHID,
		DateModified:   modified,
	}

	if len(r.Auxiliary) > 0 {
		var aux rawAuxiliary
		// Auxiliary is occasionally an empty list instead of an object;
		// treat anything undecodable as absent.
		if err := json.Unmarshal(r.Auxiliary, &aux); err == nil {
			rev.DependsOnPHIDs = aux.DependsOn
			if bug, err := aux.BugID.Int64(); err == nil {
				rev.BugID = int(bug)
			}
		}
	}

	return rev, nil
}

// GetRevision fetches a revision by its integer id.
// Returns *NotFoundError if the revision doesn't exist or the token used
// to create this client lacks permission to view it.
func (c *PhabricatorClient) GetRevision(ctx context.Context, id int) (*Revision, error) {
	params := url.Values{}
	params.Set("ids[0]", strconv.Itoa(id))

	revs, err := c.queryRevisions(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, &NotFoundError{What: "revision", ID: "D" + strconv.Itoa(id)}
	}
	return revs[0], nil
}

// GetRevisionsByPHIDs fetches several revisions in one request
func (c *PhabricatorClient) GetRevisionsByPHIDs(ctx context.Context, phids []string) ([]*Revision, error) {
	if len(phids) == 0 {
		return nil, nil
	}

	params := url.Values{}
	for i, phid := range phids {
		params.Set(fmt.Sprintf("phids[%d]", i), phid)
	}
	return c.queryRevisions(ctx, params)
}

func (c *PhabricatorClient) queryRevisions(ctx context.Context, params url.Values) ([]*Revision, error) {
	result, err := c.callConduit(ctx, "differential.query", params)
	if err != nil {
		return nil, err
	}

	var raws []rawRevision
	if err := json.Unmarshal(result, &raws); err != nil {
		return nil, &CommunicationError{Op: "differential.query", Err: err}
	}

	revs := make([]*Revision, 0, len(raws))
	for i := range raws {
		rev, err := raws[i].validate()
		if err != nil {
			return nil, &CommunicationError{Op: "differential.query", Err: err}
		}
		revs = append(revs, rev)
	}
	return revs, nil
}

// GetDependencies returns the immediate parent revisions of rev.
// The landing logic decides how many parents it tolerates; this just
// resolves the dependency edges.
func (c *PhabricatorClient) GetDependencies(ctx context.Context, rev *Revision) ([]*Revision, error) {
	return c.GetRevisionsByPHIDs(ctx, rev.DependsOnPHIDs)
}

// GetRawDiff fetches the raw git-formatted diff text by diff id
func (c *PhabricatorClient) GetRawDiff(ctx context.Context, diffID int) (string, error) {
	params := url.Values{}
	params.Set("diffID", strconv.Itoa(diffID))

	result, err := c.callConduit(ctx, "differential.getrawdiff", params)
	if err != nil {
		return "", err
	}

	var diff string
	if err := json.Unmarshal(result, &diff); err != nil {
		return "", &CommunicationError{Op: "differential.getrawdiff", Err: err}
	}
	if diff == "" {
		return "", &NotFoundError{What: "diff", ID: strconv.Itoa(diffID)}
	}
	return diff, nil
}

type rawDiff struct {
	ID           json.Number `json:"id"`
	RevisionID   json.Number `json:"revisionID"`
	DateModified json.Number `json:"dateModified"`
}

// GetDiff fetches diff metadata by its integer id
func (c *PhabricatorClient) GetDiff(ctx context.Context, diffID int) (*Diff, error) {
	params := url.Values{}
	params.Set("ids[0]", strconv.Itoa(diffID))

	result, err := c.callConduit(ctx, "differential.querydiffs", params)
	if err != nil {
		return nil, err
	}

	// querydiffs keys the result map by the stringified diff id. An empty
	// result arrives as [] rather than {}, so a miss is detected by key.
	var diffs map[string]rawDiff
	if err := json.Unmarshal(result, &diffs); err != nil {
		if string(result) == "[]" || string(result) == "null" {
			return nil, &NotFoundError{What: "diff", ID: strconv.Itoa(diffID)}
		}
		return nil, &CommunicationError{Op: "differential.querydiffs", Err: err}
	}

	raw, ok := diffs[strconv.Itoa(diffID)]
	if !ok {
		return nil, &NotFoundError{What: "diff", ID: strconv.Itoa(diffID)}
	}

	id, err1 := raw.ID.Int64()
	revID, err2 := raw.RevisionID.Int64()
	if err1 != nil || err2 != nil {
		return nil, &CommunicationError{
			Op:  "differential.querydiffs",
			Err: fmt.Errorf("malformed diff payload for id %d", diffID),
		}
	}

	modified, _ := raw.DateModified.Int64()
	return &Diff{ID: int(id), RevisionID: int(revID), DateModified: modified}, nil
}

// DiffPHIDToID resolves an opaque diff PHID to its integer id.
//
// phid.query only returns the object URI, such as
// "https://phabricator.test/differential/diff/43480/"; the id is the
// second-to-last path segment.
func (c *PhabricatorClient) DiffPHIDToID(ctx context.Context, phid string) (int, error) {
	params := url.Values{}
	params.Set("phids[0]", phid)

	result, err := c.callConduit(ctx, "phid.query", params)
	if err != nil {
		return 0, err
	}

	var objects map[string]struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(result, &objects); err != nil {
		return 0, &CommunicationError{Op: "phid.query", Err: err}
	}

	obj, ok := objects[phid]
	if !ok {
		return 0, &NotFoundError{What: "diff", ID: phid}
	}

	id, err := extractDiffIDFromURI(obj.URI)
	if err != nil {
		return 0, &CommunicationError{Op: "phid.query", Err: err}
	}
	return id, nil
}

// ActiveDiffID resolves the revision's currently-active diff id
func (c *PhabricatorClient) ActiveDiffID(ctx context.Context, rev *Revision) (int, error) {
	return c.DiffPHIDToID(ctx, rev.ActiveDiffPHID)
}

func extractDiffIDFromURI(uri string) (int, error) {
	parts := strings.Split(strings.TrimRight(uri, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "differential" || parts[len(parts)-2] != "diff" {
		return 0, fmt.Errorf("diff URI %q is not in a format we understand", uri)
	}

	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, fmt.Errorf("diff URI %q is not in a format we understand", uri)
	}
	return id, nil
}

// GetUser fetches a user by PHID
func (c *PhabricatorClient) GetUser(ctx context.Context, phid string) (*User, error) {
	params := url.Values{}
	params.Set("phids[0]", phid)

	result, err := c.callConduit(ctx, "user.query", params)
	if err != nil {
		return nil, err
	}

	var users []struct {
		PHID     string `json:"phid"`
		UserName string `json:"userName"`
		RealName string `json:"realName"`
	}
	if err := json.Unmarshal(result, &users); err != nil {
		return nil, &CommunicationError{Op: "user.query", Err: err}
	}
	if len(users) == 0 {
		return nil, &NotFoundError{What: "user", ID: phid}
	}
	if users[0].UserName == "" {
		return nil, &CommunicationError{
			Op:  "user.query",
			Err: fmt.Errorf("malformed user payload for %s", phid),
		}
	}

	return &User{PHID: users[0].PHID, UserName: users[0].UserName, RealName: users[0].RealName}, nil
}

// GetRevisionAuthor returns the user record for a revision's author
func (c *PhabricatorClient) GetRevisionAuthor(ctx context.Context, rev *Revision) (*User, error) {
	return c.GetUser(ctx, rev.AuthorPHID)
}

// GetRepo fetches the destination repository for a revision by PHID
func (c *PhabricatorClient) GetRepo(ctx context.Context, phid string) (*Repo, error) {
	if phid == "" {
		return nil, &NotFoundError{What: "repository", ID: "(none)"}
	}

	params := url.Values{}
	params.Set("constraints[phids][0]", phid)
	params.Set("attachments[uris]", "1")

	result, err := c.callConduit(ctx, "diffusion.repository.search", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data []struct {
			PHID   string `json:"phid"`
			Fields struct {
				ShortName string `json:"shortName"`
			} `json:"fields"`
			Attachments struct {
				URIs struct {
					URIs []struct {
						Fields struct {
							URI struct {
								Normalized string `json:"normalized"`
								Raw        string `json:"raw"`
							} `json:"uri"`
						} `json:"fields"`
					} `json:"uris"`
				} `json:"uris"`
			} `json:"attachments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return nil, &CommunicationError{Op: "diffusion.repository.search", Err: err}
	}
	if len(payload.Data) == 0 {
		return nil, &NotFoundError{What: "repository", ID: phid}
	}

	repo := &Repo{
		PHID:      payload.Data[0].PHID,
		ShortName: payload.Data[0].Fields.ShortName,
	}
	for _, u := range payload.Data[0].Attachments.URIs.URIs {
		if u.Fields.URI.Raw != "" {
			repo.URI = u.Fields.URI.Raw
			break
		}
	}
	if repo.URI == "" {
		return nil, &CommunicationError{
			Op:  "diffusion.repository.search",
			Err: fmt.Errorf("repository %s has no URI", phid),
		}
	}

	return repo, nil
}

// CheckConnection tests the conduit connection with conduit.ping
func (c *PhabricatorClient) CheckConnection(ctx context.Context) error {
	_, err := c.callConduit(ctx, "conduit.ping", url.Values{})
	return err
}

// VerifyAPIToken reports whether the token this client was created with
// is accepted by Phabricator
func (c *PhabricatorClient) VerifyAPIToken(ctx context.Context) bool {
	_, err := c.callConduit(ctx, "user.whoami", url.Values{})
	return err == nil
}
