package patch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/forge"
)

// Category is the closed failure taxonomy.
type Category string

const (
	// CategoryGit marks version-control failures or unexpected state.
	CategoryGit Category = "git"
	// CategoryPatchValidation marks pre-flight failures: dirty tree without
	// permission, test or lint failure.
	CategoryPatchValidation Category = "patch-validation"
	// CategoryBranchStrategy marks naming or protection-policy violations.
	CategoryBranchStrategy Category = "branch-strategy"
	// CategoryPullRequest marks forge API failures.
	CategoryPullRequest Category = "pull-request"
	// CategoryRollback marks failures of a rollback step itself. The most
	// severe case: reported, never retried automatically.
	CategoryRollback Category = "rollback"
	// CategoryGeneral marks everything else, e.g. a missing required tool.
	CategoryGeneral Category = "general"
)

// Step identifies the workflow step that failed. Classification keys on the
// step, not on error message text, which is locale- and version-fragile.
type Step string

const (
	StepPreflight    Step = "preflight"
	StepValidation   Step = "validation"
	StepStatus       Step = "status"
	StepGuard        Step = "guard"
	StepAutoCommit   Step = "auto-commit"
	StepStrategy     Step = "strategy"
	StepBranchCreate Step = "branch-create"
	StepOperation    Step = "operation"
	StepConflict     Step = "conflict"
	StepCommit       Step = "commit"
	StepPush         Step = "push"
	StepPullRequest  Step = "pull-request"
	StepIssue        Step = "issue"
	StepRollback     Step = "rollback"
	StepCancel       Step = "cancel"
)

// stepCategories is the deterministic step-to-category mapping.
var stepCategories = map[Step]Category{
	StepPreflight:    CategoryGeneral,
	StepStatus:       CategoryGit,
	StepValidation:   CategoryPatchValidation,
	StepGuard:        CategoryPatchValidation,
	StepAutoCommit:   CategoryGit,
	StepStrategy:     CategoryBranchStrategy,
	StepBranchCreate: CategoryGit,
	StepOperation:    CategoryGeneral,
	StepConflict:     CategoryGit,
	StepCommit:       CategoryGit,
	StepPush:         CategoryGit,
	StepPullRequest:  CategoryPullRequest,
	StepIssue:        CategoryPullRequest,
	StepRollback:     CategoryRollback,
	StepCancel:       CategoryGeneral,
}

// ErrorRecord is one classified failure. Append-only; never mutated after
// creation.
type ErrorRecord struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// Step is the workflow step that failed.
	Step Step `json:"step"`

	// Category is the classified failure category.
	Category Category `json:"category"`

	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Timestamp is when the failure was classified.
	Timestamp time.Time `json:"timestamp"`

	// Err is the source error, kept for errors.Is/As chains.
	Err error `json:"-"`

	// IssueNumber links the record to a tracking issue, when one exists.
	IssueNumber int `json:"issue_number,omitempty"`
}

// Classifier maps low-level failures into the closed taxonomy and keeps a
// process-local append-only log of everything it handled.
type Classifier struct {
	forge  forge.Client
	logger *zap.Logger

	mu      sync.Mutex
	records []ErrorRecord
}

// NewClassifier creates a classifier. The forge client is optional; without
// it, Handle only logs.
func NewClassifier(forgeClient forge.Client, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{forge: forgeClient, logger: logger}
}

// Classify builds an ErrorRecord for a failure of the given step.
func (c *Classifier) Classify(step Step, err error) ErrorRecord {
	category, ok := stepCategories[step]
	if !ok {
		category = CategoryGeneral
	}
	return ErrorRecord{
		ID:        uuid.New().String(),
		Step:      step,
		Category:  category,
		Message:   fmt.Sprintf("%s failed: %v", step, err),
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Handle appends the record to the log. When the record carries an issue
// number, it additionally posts a comment to the forge. The comment is
// fire-and-forget: a failure to post never masks the original error.
func (c *Classifier) Handle(ctx context.Context, record ErrorRecord) {
	c.mu.Lock()
	c.records = append(c.records, record)
	c.mu.Unlock()

	c.logger.Error("workflow step failed",
		zap.String("step", string(record.Step)),
		zap.String("category", string(record.Category)),
		zap.String("error_id", record.ID),
		zap.Error(record.Err),
	)

	if record.IssueNumber > 0 && c.forge != nil {
		body := fmt.Sprintf("**%s** failure in step `%s`:\n\n```\n%s\n```", record.Category, record.Step, record.Message)
		if err := c.forge.CommentOnIssue(ctx, record.IssueNumber, body); err != nil {
			c.logger.Warn("failed to post issue comment",
				zap.Int("issue", record.IssueNumber),
				zap.Error(err),
			)
		}
	}
}

// Records returns a copy of the handled records, oldest first.
func (c *Classifier) Records() []ErrorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ErrorRecord, len(c.records))
	copy(out, c.records)
	return out
}
