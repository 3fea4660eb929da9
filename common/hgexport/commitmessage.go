package hgexport

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	bugIDRegex    = regexp.MustCompile(`(?i)bug[ -:]{1,4}\d+`)
	reviewerRegex = regexp.MustCompile(`(?i)\A.*(r=)`)
)

// FormatCommitMessage creates a commit message from revision metadata.
//
// The format follows the convention:
//
//	Bug <#> - <title> r=<reviewer1>,r=<reviewer2>
//
//	<summary>
//
//	Differential Revision: <revision URL>
//
// If the title already contains the bug id or the reviewer list only the
// missing part is added.
func FormatCommitMessage(title string, bugID int, reviewers []string, summary, revisionURL string) string {
	firstLine := title

	if bugID != 0 && len(CommitMessageErrors(title, true, false)) > 0 {
		firstLine = fmt.Sprintf("Bug %d - %s", bugID, firstLine)
	}

	if len(reviewers) > 0 && len(CommitMessageErrors(title, false, true)) > 0 {
		parts := make([]string, len(reviewers))
		for i, r := range reviewers {
			parts[i] = "r=" + r
		}
		firstLine = fmt.Sprintf("%s %s", firstLine, strings.Join(parts, ","))
	}

	return fmt.Sprintf("%s\n\n%s\n\nDifferential Revision: %s", firstLine, summary, revisionURL)
}

// CommitMessageErrors validates the format of a commit message title.
//
// Returns a message for each missing element, or nil when the title already
// carries a bug reference and a reviewer list. The bug number does not have
// to be at the beginning of the title, it just needs to be present.
func CommitMessageErrors(commitMessage string, checkBug, checkReviewers bool) []string {
	var errs []string

	if checkBug && !bugIDRegex.MatchString(commitMessage) {
		errs = append(errs, "The commit message is missing a bug or it is invalid.")
	}

	if checkReviewers && !reviewerRegex.MatchString(commitMessage) {
		errs = append(errs, "The commit message is missing the reviewers list.")
	}

	return errs
}
