package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TransplantClient submits land jobs to the autoland service.
//
// One outbound call: Land. Completion is reported back asynchronously via
// the pingback endpoint, never through this client.
type TransplantClient struct {
	baseURL string
	http    *HTTPClient
	logger  Logger
}

// NewTransplantClient creates a client for the autoland service
func NewTransplantClient(baseURL string, httpClient *HTTPClient, logger Logger) *TransplantClient {
	return &TransplantClient{
		baseURL: baseURL,
		http:    httpClient,
		logger:  logger,
	}
}

type landRequest struct {
	LDAPUsername string   `json:"ldap_username"`
	PatchURLs    []string `json:"patch_urls"`
	Destination  string   `json:"destination"`
	PingbackURL  string   `json:"pingback_url"`
}

type landResponse struct {
	RequestID int64 `json:"request_id"`
}

// Land asks the autoland service to apply the ordered patches to the
// destination repository. Returns the job id assigned by the service.
//
// Any transport error, non-2xx response or missing job id is a submission
// failure; the caller must roll back whatever local state it prepared.
func (c *TransplantClient) Land(ctx context.Context, ldapUsername string, patchURLs []string, destination, pingbackURL string) (int64, error) {
	body, err := json.Marshal(landRequest{
		LDAPUsername: ldapUsername,
		PatchURLs:    patchURLs,
		Destination:  destination,
		PingbackURL:  pingbackURL,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal land request: %w", err)
	}

	resp, err := c.http.DoRequest(ctx, http.MethodPost, c.baseURL+"/autoland",
		"application/json", bytes.NewReader(body))
	if err != nil {
		return 0, &CommunicationError{Op: "autoland", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &CommunicationError{
			Op:  "autoland",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var result landResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, &CommunicationError{Op: "autoland", Err: err}
	}

	if result.RequestID == 0 {
		return 0, &CommunicationError{
			Op:  "autoland",
			Err: fmt.Errorf("transplant returned no request id"),
		}
	}

	c.logger.Info("transplant job submitted",
		"request_id", result.RequestID,
		"destination", destination,
		"patches", len(patchURLs))

	return result.RequestID, nil
}
