package patch

import (
	"context"
)

// Operation is the caller-supplied change to apply. It is opaque to the
// orchestrator and invoked exactly once per run; re-invocation semantics
// cannot be assumed safe, so retries are the operation's own responsibility.
type Operation func(ctx context.Context) error

// Options is the explicit option set for one patch request. Zero values are
// the documented defaults.
type Options struct {
	// ForceNewBranch creates a fresh branch even when the current branch is
	// a reusable topic branch.
	ForceNewBranch bool

	// AutoCommitDirty commits pending working-tree changes (with a
	// synthesized message) before the patch operation runs. Changes are
	// never silently discarded.
	AutoCommitDirty bool

	// Force proceeds on a dirty tree without committing. The caller accepts
	// that pre-existing edits and the patch operation become commingled.
	// Independent of SkipValidation.
	Force bool

	// SkipValidation skips the pre-flight tool and test checks. Independent
	// of Force.
	SkipValidation bool

	// Push uploads the branch with upstream tracking after the commit.
	// Implied by CreatePullRequest.
	Push bool

	// CreatePullRequest opens a pull request after a successful push.
	CreatePullRequest bool

	// CreateIssue opens a tracking issue when the run fails terminally.
	CreateIssue bool

	// DryRun executes the full decision logic with every mutating call
	// simulated. The Operation itself is not invoked: its side effects are
	// real and cannot be simulated.
	DryRun bool

	// BaseBranch is the pull-request base (default: the service's
	// configured default base branch).
	BaseBranch string

	// TestCommands are passed to the validation runner.
	TestCommands []string

	// CoAuthor is an optional "Name <email>" recorded as a
	// Co-authored-by trailer on the patch commit.
	CoAuthor string

	// IssueLabels are applied to the tracking issue, if one is created.
	IssueLabels []string
}

// Request is the unit of work for one orchestrator run. Immutable once
// accepted.
type Request struct {
	// Description is the free-form change description. It drives branch
	// naming and the commit subject.
	Description string

	// Operation applies the actual change.
	Operation Operation

	// AffectedPaths are the paths to stage. Empty stages all pending
	// changes.
	AffectedPaths []string

	// Options control the workflow.
	Options Options
}

// BranchDecision is the resolver's verdict for one request. Read-only after
// creation.
type BranchDecision struct {
	// CurrentBranch is the branch that was checked out at resolution time.
	CurrentBranch string

	// SkipCreation is true when the current branch may be reused.
	SkipCreation bool

	// NewBranchName is the branch to work on: the synthesized name, or the
	// current branch when SkipCreation is true.
	NewBranchName string

	// Reason explains the decision for logs and reports.
	Reason string
}

// CommitRecord describes a commit produced by the workflow.
type CommitRecord struct {
	Hash        string
	Message     string
	StagedPaths []string
	CoAuthor    string
}

// RollbackType selects a rollback strategy.
type RollbackType string

const (
	// RollbackLastCommit discards the single most recent commit on the
	// current branch.
	RollbackLastCommit RollbackType = "last-commit"
	// RollbackSpecificCommit resets the branch tip to an explicit commit.
	RollbackSpecificCommit RollbackType = "specific-commit"
	// RollbackWorkingTree discards uncommitted modifications only.
	RollbackWorkingTree RollbackType = "working-tree"
	// RollbackBranch restores a branch to a prior recorded tip, recreating
	// it from the backup ref if the branch was deleted.
	RollbackBranch RollbackType = "branch"
)

// RollbackPlan is constructed lazily when a failure occurs and consumed by
// Manager.Execute.
type RollbackPlan struct {
	// Type selects the strategy.
	Type RollbackType

	// Target is a commit hash (SpecificCommit) or branch name (Branch).
	// Unused by the other types.
	Target string

	// CreateBackup creates a backup ref before any destructive step.
	CreateBackup bool

	// BackupRef names the backup ref, filled in by Execute when
	// CreateBackup is set, or pre-set by the caller for Branch restores.
	BackupRef string

	// resolvedTarget pins the end state after the first Execute so a second
	// Execute of the same plan is a no-op.
	resolvedTarget string
}

// RollbackStatus reports what Execute did.
type RollbackStatus struct {
	// Performed is false when the target state was already reached.
	Performed bool

	// BackupRef is the backup reference created before the destructive
	// step, if any. Surfaced to the caller so a human can recover manually
	// after a rollback failure.
	BackupRef string
}

// State identifies a position in the orchestrator state machine.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateBranchReady      State = "branch-ready"
	StateOperationRunning State = "operation-running"
	StateCommitting       State = "committing"
	StatePushPending      State = "push-pending"
	StatePRPending        State = "pr-pending"
	StateComplete         State = "complete"
	StateErrorHandling    State = "error-handling"
	StateRolledBack       State = "rolled-back"
	StateFailed           State = "failed"
)

// Result is the outcome of one orchestrator run. When Success is false,
// Errors is non-empty and its last entry explains the terminal cause.
type Result struct {
	// Success is true when the workflow reached Complete.
	Success bool

	// Simulated marks dry runs. The result shape is otherwise identical.
	Simulated bool

	// FinalState is the terminal state machine position.
	FinalState State

	// BranchName is the branch the patch ran on.
	BranchName string

	// CommitHash is the patch commit, when one was created.
	CommitHash string

	// PRURL is the opened pull request, when one was created.
	PRURL string

	// IssueNumber is the tracking issue, when one was created.
	IssueNumber int

	// Errors are the classified failures accumulated during the run.
	Errors []ErrorRecord
}
