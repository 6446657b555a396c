package patch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/forge"
	"github.com/fyrsmithlabs/patchd/internal/gitops"
	"github.com/fyrsmithlabs/patchd/internal/validation"
)

const instrumentationName = "github.com/fyrsmithlabs/patchd/internal/patch"

// Service is the patch workflow orchestrator.
type Service interface {
	// RunPatch executes one patch workflow. The returned result is always
	// non-nil; the error mirrors the terminal failure cause for callers that
	// prefer error chains over inspecting Result.Errors.
	RunPatch(ctx context.Context, req *Request) (*Result, error)

	// ErrorLog returns the process-local append-only log of every failure
	// handled across runs.
	ErrorLog() []ErrorRecord

	// Close closes the service.
	Close() error
}

// Config configures the orchestrator.
type Config struct {
	// Strategy configures branch decisions. Nil uses defaults.
	Strategy *StrategyConfig

	// ConflictAllowPatterns override the generated-path allow-list for
	// conflict auto-resolution. Nil uses DefaultGeneratedPatterns.
	ConflictAllowPatterns []string

	// DefaultBaseBranch is the pull-request base when the request does not
	// name one (default: main).
	DefaultBaseBranch string
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() *Config {
	return &Config{
		Strategy:          DefaultStrategyConfig(),
		DefaultBaseBranch: "main",
	}
}

// service implements the Service interface.
type service struct {
	config    *Config
	git       gitops.Client
	forge     forge.Client
	validator validation.Runner
	logger    *zap.Logger
	resolver  *Resolver

	// Telemetry
	tracer          trace.Tracer
	meter           metric.Meter
	runCounter      metric.Int64Counter
	rollbackCounter metric.Int64Counter

	mu      sync.Mutex
	records []ErrorRecord
	closed  bool
}

// NewService creates a patch workflow orchestrator.
//
// The git client is required. The forge client and validation runner are
// optional: requests that need them fail with a classified error instead.
func NewService(cfg *Config, git gitops.Client, forgeClient forge.Client, validator validation.Runner, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}
	if cfg.DefaultBaseBranch == "" {
		cfg.DefaultBaseBranch = "main"
	}
	if git == nil {
		return nil, errors.New("git client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		config:    cfg,
		git:       git,
		forge:     forgeClient,
		validator: validator,
		logger:    logger,
		resolver:  NewResolver(cfg.Strategy, logger),
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.runCounter, err = s.meter.Int64Counter(
		"patchd.workflow.runs_total",
		metric.WithDescription("Total number of patch workflow runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		s.logger.Warn("failed to create run counter", zap.Error(err))
	}

	s.rollbackCounter, err = s.meter.Int64Counter(
		"patchd.workflow.rollbacks_total",
		metric.WithDescription("Total number of rollback executions"),
		metric.WithUnit("{rollback}"),
	)
	if err != nil {
		s.logger.Warn("failed to create rollback counter", zap.Error(err))
	}
}

// RunPatch executes one patch workflow.
func (s *service) RunPatch(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "patch.run")
	defer span.End()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("service is closed")
	}
	s.mu.Unlock()

	if req == nil {
		return nil, errors.New("request is required")
	}
	if req.Description == "" {
		return nil, errors.New("request description is required")
	}
	if req.Operation == nil {
		return nil, errors.New("request operation is required")
	}

	span.SetAttributes(
		attribute.Bool("dry_run", req.Options.DryRun),
		attribute.Bool("force_new_branch", req.Options.ForceNewBranch),
		attribute.Bool("create_pull_request", req.Options.CreatePullRequest),
	)

	r := s.newRun(req)
	r.execute(ctx)

	s.mu.Lock()
	s.records = append(s.records, r.classifier.Records()...)
	s.mu.Unlock()

	if s.runCounter != nil {
		s.runCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", r.result.Success),
			attribute.Bool("dry_run", r.result.Simulated),
			attribute.String("final_state", string(r.result.FinalState)),
		))
	}

	span.SetAttributes(
		attribute.String("final_state", string(r.result.FinalState)),
		attribute.String("branch", r.result.BranchName),
	)

	if !r.result.Success {
		last := r.result.Errors[len(r.result.Errors)-1]
		span.RecordError(last.Err)
		span.SetStatus(codes.Error, last.Message)
		return r.result, fmt.Errorf("patch workflow failed at step %s: %w", last.Step, last.Err)
	}

	s.logger.Info("patch workflow complete",
		zap.String("branch", r.result.BranchName),
		zap.String("commit", r.result.CommitHash),
		zap.Bool("simulated", r.result.Simulated),
	)
	return r.result, nil
}

// ErrorLog returns a copy of every record handled across runs.
func (s *service) ErrorLog() []ErrorRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ErrorRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Close closes the service.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

// run holds the state of one workflow execution. A run exclusively owns the
// request's lifecycle: decision, commit record, and result.
type run struct {
	svc        *service
	req        *Request
	git        gitops.Client
	forge      forge.Client
	guard      *Guard
	builder    *Builder
	conflicts  *ConflictResolver
	rollback   *Manager
	classifier *Classifier
	logger     *zap.Logger

	state          State
	result         *Result
	originalBranch string
	branchCreated  bool
	decision       *BranchDecision
	valResult      *validation.Result
}

// newRun binds a run to either the real collaborators or, for dry runs, to
// simulating decorators. The decision logic is identical either way.
func (s *service) newRun(req *Request) *run {
	git := s.git
	forgeClient := s.forge
	if req.Options.DryRun {
		git = gitops.NewDryRunClient(s.git, s.logger)
		forgeClient = forge.NewDryRunClient(s.logger)
	}

	return &run{
		svc:        s,
		req:        req,
		git:        git,
		forge:      forgeClient,
		guard:      NewGuard(git, s.logger),
		builder:    NewBuilder(git, s.logger),
		conflicts:  NewConflictResolver(git, s.config.ConflictAllowPatterns, s.logger),
		rollback:   NewManager(git, s.logger),
		classifier: NewClassifier(forgeClient, s.logger),
		logger:     s.logger,
		state:      StateIdle,
		result:     &Result{Simulated: req.Options.DryRun},
	}
}

// execute drives the state machine. Each transition is a cancellation
// checkpoint; cancellation is never honored mid-step to avoid leaving the
// repository half-staged.
func (r *run) execute(ctx context.Context) {
	opts := r.req.Options

	if !r.transition(ctx, StateValidating) {
		return
	}
	if !opts.SkipValidation {
		if !r.runValidation(ctx) {
			return
		}
	}

	branch, err := r.git.CurrentBranch(ctx)
	if err != nil {
		r.fail(ctx, StepStatus, err)
		return
	}
	r.originalBranch = branch

	status, err := r.guard.Check(ctx)
	if err != nil {
		r.fail(ctx, StepStatus, err)
		return
	}
	if _, err := r.guard.EnsureClean(ctx, status, opts.AutoCommitDirty, opts.Force); err != nil {
		if errors.Is(err, ErrDirtyWorkingTree) {
			r.fail(ctx, StepGuard, err)
		} else {
			r.fail(ctx, StepAutoCommit, err)
		}
		return
	}

	decision, err := r.svc.resolver.Resolve(r.req.Description, branch, opts.ForceNewBranch)
	if err != nil {
		r.fail(ctx, StepStrategy, err)
		return
	}
	r.decision = decision
	r.result.BranchName = decision.NewBranchName

	if !decision.SkipCreation {
		if err := r.git.CreateBranch(ctx, decision.NewBranchName); err != nil {
			r.fail(ctx, StepBranchCreate, err)
			return
		}
		r.branchCreated = true
	}

	if !r.transition(ctx, StateBranchReady) {
		return
	}
	if !r.transition(ctx, StateOperationRunning) {
		return
	}

	// The operation is invoked exactly once, and never during a dry run:
	// it is an opaque side-effecting callback the decorators cannot
	// intercept, so simulating the workflow means skipping it. Retries, if
	// any, are the operation's own responsibility.
	if opts.DryRun {
		r.logger.Info("dry run: patch operation skipped")
	} else if err := r.req.Operation(ctx); err != nil {
		r.fail(ctx, StepOperation, err)
		return
	}

	conflicts, err := r.conflicts.DetectConflicts(ctx)
	if err != nil {
		r.fail(ctx, StepStatus, err)
		return
	}
	if len(conflicts) > 0 {
		_, remaining, resolveErr := r.conflicts.TryAutoResolve(ctx, conflicts)
		if resolveErr != nil {
			r.fail(ctx, StepConflict, resolveErr)
			return
		}
		if len(remaining) > 0 {
			r.fail(ctx, StepConflict, fmt.Errorf("unresolved conflicts in %s", joinConflicts(remaining)))
			return
		}
	}

	if !r.transition(ctx, StateCommitting) {
		return
	}
	commit, err := r.builder.Commit(ctx, r.req.Description, r.req.AffectedPaths, opts.CoAuthor)
	if err != nil {
		r.fail(ctx, StepCommit, err)
		return
	}
	r.result.CommitHash = commit.Hash

	if opts.Push || opts.CreatePullRequest {
		if !r.transition(ctx, StatePushPending) {
			return
		}
		if err := r.git.Push(ctx, decision.NewBranchName, true); err != nil {
			// Rollback-exempt: the commit is intact and the push can be
			// retried manually. The branch stays checked out.
			r.fail(ctx, StepPush, err)
			return
		}
	}

	if opts.CreatePullRequest {
		if !r.transition(ctx, StatePRPending) {
			return
		}
		if r.forge == nil {
			r.fail(ctx, StepPullRequest, errors.New("forge client not configured"))
			return
		}
		url, err := r.forge.CreatePullRequest(ctx, &forge.PullRequestRequest{
			Title: firstLine(commit.Message),
			Body:  r.pullRequestBody(),
			Base:  r.baseBranch(),
			Head:  decision.NewBranchName,
		})
		if err != nil {
			r.fail(ctx, StepPullRequest, err)
			return
		}
		r.result.PRURL = url
	}

	r.state = StateComplete
	r.result.FinalState = StateComplete
	r.result.Success = true
}

// runValidation executes the pre-flight gate. Missing tools or dependency
// files are terminal general failures; failing test commands are
// patch-validation failures. Both happen before any mutation.
func (r *run) runValidation(ctx context.Context) bool {
	if r.svc.validator == nil {
		r.fail(ctx, StepPreflight, errors.New("validation runner not configured; set SkipValidation to bypass"))
		return false
	}

	vres, err := r.svc.validator.Run(ctx, r.req.Options.TestCommands)
	if err != nil {
		r.fail(ctx, StepPreflight, err)
		return false
	}
	r.valResult = vres

	if vres.AllRequirementsMet {
		return true
	}

	if len(vres.MissingTools) > 0 || len(vres.MissingDependencies) > 0 {
		r.fail(ctx, StepPreflight, fmt.Errorf(
			"missing tools %v, missing dependencies %v",
			vres.MissingTools, vres.MissingDependencies,
		))
		return false
	}

	failed := make([]string, 0, len(vres.FailedCommands))
	for command := range vres.FailedCommands {
		failed = append(failed, command)
	}
	r.fail(ctx, StepValidation, fmt.Errorf("validation commands failed: %s", strings.Join(failed, "; ")))
	return false
}

// transition moves to the next state, honoring cancellation only at this
// boundary.
func (r *run) transition(ctx context.Context, next State) bool {
	if err := ctx.Err(); err != nil {
		r.fail(ctx, StepCancel, err)
		return false
	}
	r.logger.Debug("state transition",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
	)
	r.state = next
	return true
}

// fail classifies the error, opens a tracking issue when requested, handles
// the record, and attempts recovery. Recovery appends its own records when a
// rollback step itself fails, so the last entry in Result.Errors always
// explains the terminal cause.
func (r *run) fail(ctx context.Context, step Step, err error) {
	r.state = StateErrorHandling
	rec := r.classifier.Classify(step, err)

	if r.req.Options.CreateIssue && r.forge != nil && r.result.IssueNumber == 0 {
		number, issueErr := r.forge.CreateIssue(ctx, &forge.IssueRequest{
			Title:  "patch failed: " + firstLine(r.req.Description),
			Body:   r.issueBody(rec),
			Labels: r.req.Options.IssueLabels,
		})
		if issueErr != nil {
			// Fire-and-forget: never mask the original error.
			r.logger.Warn("failed to create tracking issue", zap.Error(issueErr))
		} else {
			r.result.IssueNumber = number
		}
	}

	rec.IssueNumber = r.result.IssueNumber
	r.classifier.Handle(ctx, rec)
	r.result.Errors = append(r.result.Errors, rec)

	if r.recover(ctx, step) {
		r.state = StateRolledBack
	} else {
		r.state = StateFailed
	}
	r.result.FinalState = r.state
}

// recover decides per failing step whether and how to roll back. Returns
// true only when a rollback was performed and succeeded.
func (r *run) recover(ctx context.Context, step Step) bool {
	switch step {
	case StepPreflight, StepValidation, StepGuard, StepStrategy, StepCancel, StepStatus:
		// Nothing mutated yet; recovery is simply stop.
		return false
	case StepAutoCommit, StepBranchCreate:
		// The auto-commit keeps the user's own changes; only a half-created
		// branch needs cleanup.
		return r.restoreOriginalBranch(ctx)
	case StepOperation, StepConflict, StepCommit:
		return r.recoverPreCommit(ctx)
	case StepPush, StepPullRequest, StepIssue:
		// Rollback-exempt: local history is good and the remote step can be
		// retried manually. Documented behavior, not an oversight.
		return false
	default:
		return false
	}
}

// recoverPreCommit discards whatever the failed operation left in the
// working tree, then returns to the original branch. A backup ref is created
// before the destructive reset.
//
// When the run was forced onto a dirty tree without an auto-commit, the
// uncommitted edits predate the run and exist nowhere else; a hard reset
// would destroy them. Recovery is then checkout-only and the commingled
// tree is left for the user to sort out.
func (r *run) recoverPreCommit(ctx context.Context) bool {
	if r.req.Options.Force && !r.req.Options.AutoCommitDirty {
		r.logger.Warn("leaving working tree dirty: uncommitted changes predate the run")
		return r.restoreOriginalBranch(ctx)
	}

	if r.svc.rollbackCounter != nil {
		r.svc.rollbackCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("type", string(RollbackWorkingTree)),
		))
	}

	plan := r.rollback.Plan(RollbackWorkingTree, "", true)
	if _, err := r.rollback.Execute(ctx, plan); err != nil {
		r.failRollback(ctx, err, plan)
		return false
	}
	return r.restoreOriginalBranch(ctx)
}

// restoreOriginalBranch checks out the branch the run started on and removes
// the branch the run created, if any. The created branch carries no commits
// at this point.
func (r *run) restoreOriginalBranch(ctx context.Context) bool {
	if !r.branchCreated {
		return true
	}

	if err := r.git.Checkout(ctx, r.originalBranch); err != nil {
		r.failRollback(ctx, fmt.Errorf("failed to return to %s: %w", r.originalBranch, err), nil)
		return false
	}
	if err := r.git.DeleteBranch(ctx, r.decision.NewBranchName); err != nil {
		r.failRollback(ctx, fmt.Errorf("failed to remove %s: %w", r.decision.NewBranchName, err), nil)
		return false
	}

	r.logger.Info("rolled back to original branch",
		zap.String("branch", r.originalBranch),
		zap.String("removed", r.decision.NewBranchName),
	)
	return true
}

// failRollback records a rollback failure. These are the most severe
// records: reported with the backup ref for manual recovery, never retried.
func (r *run) failRollback(ctx context.Context, err error, plan *RollbackPlan) {
	if plan != nil && plan.BackupRef != "" {
		err = fmt.Errorf("%w (backup ref: %s)", err, plan.BackupRef)
	}
	rec := r.classifier.Classify(StepRollback, err)
	rec.IssueNumber = r.result.IssueNumber
	r.classifier.Handle(ctx, rec)
	r.result.Errors = append(r.result.Errors, rec)
}

// baseBranch resolves the pull-request base.
func (r *run) baseBranch() string {
	if r.req.Options.BaseBranch != "" {
		return r.req.Options.BaseBranch
	}
	return r.svc.config.DefaultBaseBranch
}

// pullRequestBody embeds the validation result and any accumulated error
// records for auditability.
func (r *run) pullRequestBody() string {
	var b strings.Builder

	b.WriteString(r.req.Description)
	b.WriteString("\n\n## Workflow\n\n")
	fmt.Fprintf(&b, "- Branch: `%s` (%s)\n", r.decision.NewBranchName, r.decision.Reason)
	fmt.Fprintf(&b, "- Commit: `%s`\n", r.result.CommitHash)
	if r.result.Simulated {
		b.WriteString("- Simulated: dry run, no mutations performed\n")
	}

	if r.valResult != nil {
		b.WriteString("\n## Validation\n\n")
		if r.valResult.AllRequirementsMet {
			b.WriteString("All requirements met.\n")
		} else {
			for _, suggestion := range r.valResult.FixSuggestions {
				fmt.Fprintf(&b, "- %s\n", suggestion)
			}
		}
	}

	if len(r.result.Errors) > 0 {
		b.WriteString("\n## Recovered errors\n\n")
		for _, rec := range r.result.Errors {
			fmt.Fprintf(&b, "- [%s] %s\n", rec.Category, rec.Message)
		}
	}

	return b.String()
}

// issueBody summarizes a terminal failure for the tracking issue.
func (r *run) issueBody(rec ErrorRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The patch workflow for %q failed.\n\n", firstLine(r.req.Description))
	fmt.Fprintf(&b, "- Step: `%s`\n- Category: `%s`\n- Error: %s\n", rec.Step, rec.Category, rec.Message)
	if r.result.BranchName != "" {
		fmt.Fprintf(&b, "- Branch: `%s`\n", r.result.BranchName)
	}
	if r.result.CommitHash != "" {
		fmt.Fprintf(&b, "- Commit: `%s`\n", r.result.CommitHash)
	}

	return b.String()
}

func joinConflicts(conflicts []ConflictedPath) string {
	paths := make([]string, len(conflicts))
	for i, c := range conflicts {
		paths[i] = c.Path
	}
	return strings.Join(paths, ", ")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
