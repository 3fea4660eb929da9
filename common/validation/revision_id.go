package validation

import (
	"fmt"
	"strconv"
	"strings"
)

// RevisionIDToInt converts a textual revision id to its integer form.
//
// Phabricator revision ids travel over the API in the prefixed textual
// form, e.g. "D123". Anything else ("123", "A123", "DAB") is rejected.
func RevisionIDToInt(revisionID string) (int, error) {
	trimmed := strings.TrimSpace(revisionID)
	if !strings.HasPrefix(trimmed, "D") {
		return 0, fmt.Errorf("invalid revision id %q: expected the form D123", revisionID)
	}

	id, err := strconv.Atoi(trimmed[1:])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid revision id %q: expected the form D123", revisionID)
	}

	return id, nil
}
