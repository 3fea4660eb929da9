package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/autoland/lando/common/clients"
	"github.com/autoland/lando/common/hgexport"
	"github.com/autoland/lando/common/logger"
	"github.com/google/cel-go/cel"
)

// Issue is one warning or problem found by a dry-run assessment
type Issue struct {
	ID      string `json:"id"`
	Message string `json:"message"`

	// Populated for the open-parent problem
	OpenRevisionID int `json:"open_revision_id,omitempty"`
}

// Assessment is the result of a dry-run landing check.
//
// Warnings are advisory; the confirmation token binds the exact warning
// set the client saw, so a later landing request can prove the user
// acknowledged them. Problems block landing outright.
type Assessment struct {
	ConfirmationToken *string `json:"confirmation_token"`
	Warnings          []Issue `json:"warnings"`
	Problems          []Issue `json:"problems"`
}

// AssessmentService runs pre-landing checks without side effects
type AssessmentService struct {
	gateway  RevisionGateway
	blockers []blockerRule
	log      *logger.Logger
}

type blockerRule struct {
	expr    string
	program cel.Program
}

// NewAssessmentService compiles the configured blocker rules and returns
// the service. Each rule is a CEL expression over revision facts; a rule
// evaluating to true blocks the landing.
func NewAssessmentService(gateway RevisionGateway, rules []string, log *logger.Logger) (*AssessmentService, error) {
	env, err := cel.NewEnv(
		cel.Variable("revision_id", cel.IntType),
		cel.Variable("status", cel.StringType),
		cel.Variable("status_name", cel.StringType),
		cel.Variable("open", cel.BoolType),
		cel.Variable("bug_id", cel.IntType),
		cel.Variable("title", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	blockers := make([]blockerRule, 0, len(rules))
	for _, rule := range rules {
		ast, issues := env.Compile(rule)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile blocker rule %q: %w", rule, issues.Err())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("build blocker rule %q: %w", rule, err)
		}
		blockers = append(blockers, blockerRule{expr: rule, program: program})
	}

	return &AssessmentService{
		gateway:  gateway,
		blockers: blockers,
		log:      log,
	}, nil
}

// Assess runs all checks for a revision and reports what would block or
// complicate landing it. Read-only; never mutates state.
func (s *AssessmentService) Assess(ctx context.Context, revisionID int) (*Assessment, error) {
	rev, err := s.gateway.GetRevision(ctx, revisionID)
	if err != nil {
		return nil, gatewayError(err, KindRevisionNotFound, revisionID)
	}

	assessment := &Assessment{Warnings: []Issue{}, Problems: []Issue{}}

	s.checkOpenParent(ctx, rev, assessment)
	s.checkCommitMessage(rev, assessment)
	s.checkBlockerRules(rev, assessment)

	assessment.ConfirmationToken = hashWarnings(assessment.Warnings)
	return assessment, nil
}

// checkOpenParent reports the first parent revision still under review
func (s *AssessmentService) checkOpenParent(ctx context.Context, rev *clients.Revision, assessment *Assessment) {
	visited := map[int]bool{rev.ID: true}
	queue := []*clients.Revision{rev}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		parents, err := s.gateway.GetDependencies(ctx, current)
		if err != nil {
			s.log.Warn("dependency walk failed during assessment",
				"revision_id", current.ID, "error", err)
			return
		}

		for _, parent := range parents {
			if visited[parent.ID] {
				continue
			}
			visited[parent.ID] = true

			if parent.Status.Open() {
				assessment.Problems = append(assessment.Problems, Issue{
					ID:             "E1",
					Message:        fmt.Sprintf("One of the parent revisions (D%d) is open.", parent.ID),
					OpenRevisionID: parent.ID,
				})
				return
			}
			queue = append(queue, parent)
		}
	}
}

// checkCommitMessage warns when the revision title is missing a bug
// reference or a reviewer list
func (s *AssessmentService) checkCommitMessage(rev *clients.Revision, assessment *Assessment) {
	for _, msg := range hgexport.CommitMessageErrors(rev.Title, rev.BugID == 0, true) {
		assessment.Warnings = append(assessment.Warnings, Issue{ID: "W1", Message: msg})
	}
}

// checkBlockerRules evaluates the configured CEL rules against the revision
func (s *AssessmentService) checkBlockerRules(rev *clients.Revision, assessment *Assessment) {
	if len(s.blockers) == 0 {
		return
	}

	facts := map[string]interface{}{
		"revision_id": int64(rev.ID),
		"status":      string(rev.Status),
		"status_name": rev.StatusName,
		"open":        rev.Status.Open(),
		"bug_id":      int64(rev.BugID),
		"title":       rev.Title,
	}

	for _, rule := range s.blockers {
		out, _, err := rule.program.Eval(facts)
		if err != nil {
			s.log.Warn("blocker rule evaluation failed", "rule", rule.expr, "error", err)
			continue
		}
		if blocked, ok := out.Value().(bool); ok && blocked {
			assessment.Problems = append(assessment.Problems, Issue{
				ID:      "E2",
				Message: fmt.Sprintf("Landing is blocked by policy: %s", rule.expr),
			})
		}
	}
}

// hashWarnings returns a cross-machine comparable hash of the warning set,
// or nil when there are no warnings.
//
// Warnings are deduplicated by id (last one wins) and serialized with
// sorted keys so the same set always hashes identically, no matter which
// process produced it.
func hashWarnings(warnings []Issue) *string {
	if len(warnings) == 0 {
		return nil
	}

	byID := make(map[string]Issue, len(warnings))
	for _, w := range warnings {
		byID[w.ID] = w
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	ordered := make([]Issue, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, byID[id])
	}

	serialized, err := json.Marshal(ordered)
	if err != nil {
		return nil
	}

	sum := sha256.Sum256(serialized)
	token := hex.EncodeToString(sum[:])
	return &token
}
