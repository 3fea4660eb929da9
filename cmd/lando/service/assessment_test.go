package service

import (
	"context"
	"testing"

	"github.com/autoland/lando/common/clients"
	"github.com/autoland/lando/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssessmentFixture(t *testing.T, rules []string) (*AssessmentService, *fakeGateway) {
	t.Helper()
	gateway := newFakeGateway()
	svc, err := NewAssessmentService(gateway, rules, logger.New("error", "json"))
	require.NoError(t, err)
	return svc, gateway
}

func TestAssessCleanRevision(t *testing.T) {
	svc, gateway := newAssessmentFixture(t, nil)
	gateway.addRevision(1, 11)

	assessment, err := svc.Assess(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, assessment.Problems)
	assert.Empty(t, assessment.Warnings)
	assert.Nil(t, assessment.ConfirmationToken)
}

func TestAssessUnknownRevision(t *testing.T) {
	svc, _ := newAssessmentFixture(t, nil)

	_, err := svc.Assess(context.Background(), 900)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRevisionNotFound))
}

func TestAssessReportsOpenParent(t *testing.T) {
	svc, gateway := newAssessmentFixture(t, nil)
	parent := gateway.addRevision(1, 11)
	parent.Status = clients.StatusNeedsReview
	gateway.addRevision(2, 22, 1)

	assessment, err := svc.Assess(context.Background(), 2)
	require.NoError(t, err)

	require.Len(t, assessment.Problems, 1)
	assert.Equal(t, "E1", assessment.Problems[0].ID)
	assert.Equal(t, 1, assessment.Problems[0].OpenRevisionID)
	assert.Contains(t, assessment.Problems[0].Message, "D1")
}

func TestAssessIgnoresClosedParents(t *testing.T) {
	svc, gateway := newAssessmentFixture(t, nil)
	parent := gateway.addRevision(1, 11)
	parent.Status = clients.StatusClosed
	gateway.addRevision(2, 22, 1)

	assessment, err := svc.Assess(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, assessment.Problems)
}

func TestAssessWarnsOnBadCommitMessage(t *testing.T) {
	svc, gateway := newAssessmentFixture(t, nil)
	rev := gateway.addRevision(1, 11)
	rev.Title = "fix the thing"
	rev.BugID = 0

	assessment, err := svc.Assess(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, assessment.Warnings, 2)
	for _, warning := range assessment.Warnings {
		assert.Equal(t, "W1", warning.ID)
	}
	require.NotNil(t, assessment.ConfirmationToken)
	assert.Len(t, *assessment.ConfirmationToken, 64)
}

func TestAssessConfirmationTokenIsDeterministic(t *testing.T) {
	svc, gateway := newAssessmentFixture(t, nil)
	rev := gateway.addRevision(1, 11)
	rev.Title = "fix the thing"
	rev.BugID = 0

	first, err := svc.Assess(context.Background(), 1)
	require.NoError(t, err)
	second, err := svc.Assess(context.Background(), 1)
	require.NoError(t, err)

	require.NotNil(t, first.ConfirmationToken)
	require.NotNil(t, second.ConfirmationToken)
	assert.Equal(t, *first.ConfirmationToken, *second.ConfirmationToken)
}

func TestAssessBlockerRules(t *testing.T) {
	svc, gateway := newAssessmentFixture(t, []string{`bug_id == 0`, `title == "never"`})
	rev := gateway.addRevision(1, 11)
	rev.BugID = 0

	assessment, err := svc.Assess(context.Background(), 1)
	require.NoError(t, err)

	// Only the bug rule fires.
	require.Len(t, assessment.Problems, 1)
	assert.Equal(t, "E2", assessment.Problems[0].ID)
	assert.Contains(t, assessment.Problems[0].Message, "bug_id == 0")
}

func TestNewAssessmentServiceRejectsInvalidRule(t *testing.T) {
	_, err := NewAssessmentService(newFakeGateway(), []string{`not valid (`}, logger.New("error", "json"))
	require.Error(t, err)
}
