// Package patch implements the patch workflow orchestrator: a state machine
// that turns a "make this change safely" request into a disciplined sequence
// of version-control operations.
//
// The orchestrator composes leaf components, each in its own file:
//   - Resolver (strategy.go) decides whether a new branch is needed and
//     synthesizes its name deterministically.
//   - Guard (guard.go) validates or auto-remediates working-tree state before
//     any mutation.
//   - Builder (commit.go) stages affected paths and produces a structured
//     commit.
//   - ConflictResolver (conflict.go) detects unmerged paths and attempts
//     conservative auto-resolution.
//   - Manager (rollback.go) reverts to a known-good state, creating a backup
//     ref before any destructive step.
//   - Classifier (errors.go) maps failures into a closed taxonomy keyed on
//     the step that failed, never on message text.
//
// One orchestrator run owns one checkout. Concurrent runs against the same
// checkout are unsupported and must be serialized by the caller.
//
// # Usage
//
// A minimal run:
//
//	svc, err := patch.NewService(nil, gitClient, forgeClient, runner, logger)
//
//	result, err := svc.RunPatch(ctx, &patch.Request{
//	    Description: "Fix critical bug in parser",
//	    Operation: func(ctx context.Context) error {
//	        return applyFix(ctx)
//	    },
//	    AffectedPaths: []string{"parser/lexer.go"},
//	    Options: patch.Options{
//	        ForceNewBranch:    true,
//	        CreatePullRequest: true,
//	    },
//	})
//
// Setting Options.DryRun runs the full decision logic with every mutating
// call simulated, which is how the workflow is tested without a live
// repository.
package patch
