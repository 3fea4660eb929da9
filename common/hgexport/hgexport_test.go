package hgexport

import "testing"

const gitDiff = `diff --git a/hello.c b/hello.c
--- a/hello.c   Fri Aug 26 01:21:28 2005 -0700
+++ b/hello.c   Mon May 05 01:20:46 2008 +0200
@@ -12,5 +12,6 @@
 int main(int argc, char **argv)
 {
        printf("hello, world!\n");
+       printf("sure am glad I'm using Mercurial!\n");
        return 0;
 }
`

const commitMessage = `Express great joy at existence of Mercurial

Using console to print out the messages.`

const wantPatch = `# HG changeset patch
# User user_name
# Date 1496239141 +0000
Express great joy at existence of Mercurial

Using console to print out the messages.

diff --git a/hello.c b/hello.c
--- a/hello.c   Fri Aug 26 01:21:28 2005 -0700
+++ b/hello.c   Mon May 05 01:20:46 2008 +0200
@@ -12,5 +12,6 @@
 int main(int argc, char **argv)
 {
        printf("hello, world!\n");
+       printf("sure am glad I'm using Mercurial!\n");
        return 0;
 }
`

func TestBuildPatchForRevision(t *testing.T) {
	patch := BuildPatchForRevision(gitDiff, "user_name", commitMessage, 1496239141)

	if patch != wantPatch {
		t.Errorf("Patch mismatch.\nGot:\n%s\nWant:\n%s", patch, wantPatch)
	}
}

func TestBuildPatchForRevision_Deterministic(t *testing.T) {
	a := BuildPatchForRevision(gitDiff, "user_name", commitMessage, 1496239141)
	b := BuildPatchForRevision(gitDiff, "user_name", commitMessage, 1496239141)

	if a != b {
		t.Error("Identical inputs must produce byte-identical patches")
	}
}
