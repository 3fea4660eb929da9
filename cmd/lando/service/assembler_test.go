package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/autoland/lando/common/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssemblerFixture() (*PatchAssembler, *fakeGateway, *fakeBlobStore) {
	log := logger.New("error", "json")
	gateway := newFakeGateway()
	blobs := newFakeBlobStore()
	return NewPatchAssembler(gateway, blobs, log), gateway, blobs
}

func TestResolveStackSingleRevision(t *testing.T) {
	assembler, gateway, _ := newAssemblerFixture()
	rev := gateway.addRevision(1, 11)

	stack, err := assembler.ResolveStack(context.Background(), rev, 11)
	require.NoError(t, err)
	require.Len(t, stack, 1)
	assert.Equal(t, 1, stack[0].Revision.ID)
	assert.Equal(t, 11, stack[0].DiffID)
	assert.True(t, stack[0].ClientSupplied)
}

func TestResolveStackOrdersOldestAncestorFirst(t *testing.T) {
	assembler, gateway, _ := newAssemblerFixture()
	gateway.addRevision(1, 11)
	gateway.addRevision(2, 22, 1)
	top := gateway.addRevision(3, 33, 2)

	stack, err := assembler.ResolveStack(context.Background(), top, 33)
	require.NoError(t, err)
	require.Len(t, stack, 3)

	for i, wantRev := range []int{1, 2, 3} {
		assert.Equal(t, wantRev, stack[i].Revision.ID)
	}

	// Ancestors land their active diff; only the top entry carries the
	// caller's choice.
	assert.False(t, stack[0].ClientSupplied)
	assert.Equal(t, 11, stack[0].DiffID)
	assert.False(t, stack[1].ClientSupplied)
	assert.Equal(t, 22, stack[1].DiffID)
	assert.True(t, stack[2].ClientSupplied)
	assert.Equal(t, 33, stack[2].DiffID)
}

func TestResolveStackRejectsMultipleParentsAtTop(t *testing.T) {
	assembler, gateway, _ := newAssemblerFixture()
	gateway.addRevision(1, 11)
	gateway.addRevision(2, 22)
	top := gateway.addRevision(3, 33, 1, 2)

	_, err := assembler.ResolveStack(context.Background(), top, 33)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMultipleParents))
}

func TestResolveStackRejectsCycle(t *testing.T) {
	assembler, gateway, _ := newAssemblerFixture()
	gateway.addRevision(2, 22, 3)
	gateway.addRevision(3, 33, 2)
	top := gateway.revisions[3]

	_, err := assembler.ResolveStack(context.Background(), top, 33)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCircularDependency))
}

func TestAssembleAndStoreRendersHgExportPatch(t *testing.T) {
	assembler, gateway, blobs := newAssemblerFixture()
	rev := gateway.addRevision(1, 11)
	landingID := uuid.New()

	patch, err := assembler.AssembleAndStore(context.Background(), landingID, rev, 11, true)
	require.NoError(t, err)
	assert.Equal(t, 1, patch.RevisionID)
	assert.Equal(t, 11, patch.DiffID)

	name := fmt.Sprintf("D1_11_%s.patch", landingID)
	assert.Equal(t, "blob://test/"+name, patch.URL)

	content := string(blobs.blobs[name])
	assert.True(t, strings.HasPrefix(content, "# HG changeset patch\n"))
	assert.Contains(t, content, "# User Test Author\n")
	assert.Contains(t, content, fmt.Sprintf("# Date %d +0000\n", rev.DateModified))
	assert.Contains(t, content, rev.Title)
	assert.True(t, strings.HasSuffix(content, gateway.rawDiffs[11]))
}

func TestAssembleAndStoreRejectsDiffFromOtherRevision(t *testing.T) {
	assembler, gateway, blobs := newAssemblerFixture()
	rev := gateway.addRevision(1, 11)
	gateway.addRevision(2, 22)

	_, err := assembler.AssembleAndStore(context.Background(), uuid.New(), rev, 22, true)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDiffNotInRevision))
	assert.Empty(t, blobs.blobs)
}

func TestAssembleAndStoreSkipsOwnershipCheckForActiveDiffs(t *testing.T) {
	assembler, gateway, _ := newAssemblerFixture()
	rev := gateway.addRevision(1, 11)

	// Raw diff resolvable but no diff metadata registered; only the
	// verify path would need it.
	gateway.rawDiffs[12] = "diff --git a/x b/x\n"
	delete(gateway.diffs, 12)

	_, err := assembler.AssembleAndStore(context.Background(), uuid.New(), rev, 12, false)
	require.NoError(t, err)
}

func TestAssembleAndStoreUnknownDiff(t *testing.T) {
	assembler, gateway, _ := newAssemblerFixture()
	rev := gateway.addRevision(1, 11)

	_, err := assembler.AssembleAndStore(context.Background(), uuid.New(), rev, 999, true)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDiffNotFound))
}
