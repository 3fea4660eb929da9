// Package hgexport renders landing-ready patches in 'hg export' format.
package hgexport

import "fmt"

// The wire format consumed by the transplant service. Byte layout is
// load-bearing: autoland feeds this text to `hg import` unmodified.
const patchTemplate = `# HG changeset patch
# User %s
# Date %d +0000
%s

%s`

// BuildPatchForRevision generates a 'hg export' patch from revision data.
//
// diff is a Git-formatted patch body, author the "Name <email>" identity,
// commitMessage the full formatted message, and dateModified the revision's
// last modification time in seconds since the Unix epoch. The patch is
// back-dated to the revision's modification date so re-rendering the same
// inputs is byte-for-byte reproducible.
func BuildPatchForRevision(diff, author, commitMessage string, dateModified int64) string {
	return fmt.Sprintf(patchTemplate, author, dateModified, commitMessage, diff)
}
