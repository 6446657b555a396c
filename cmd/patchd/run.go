package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patchd/internal/logging"
	"github.com/fyrsmithlabs/patchd/internal/patch"
)

var (
	runForceNewBranch bool
	runAutoCommit     bool
	runForce          bool
	runSkipValidation bool
	runPush           bool
	runPullRequest    bool
	runIssue          bool
	runDryRun         bool
	runBaseBranch     string
	runTestCommands   []string
	runCoAuthor       string
	runLabels         []string
	runPaths          []string
	runJSON           bool
)

var runCmd = &cobra.Command{
	Use:   "run <description> [-- command args...]",
	Short: "Run a patch workflow",
	Long: `Run one patch workflow: resolve the branch strategy, guard the working
tree, apply the change, commit, and optionally push and open a pull request.

The command after -- is executed in the repository directory as the patch
operation. Without a command the operation is a no-op; combine with --force
to commit changes already present in the working tree. Under --dry-run the
command is not executed and every repository mutation is simulated.

Examples:
  # Apply a codemod and open a PR
  patchd run "fix deprecated API usage" --pr -- sh -c 'gofmt -w .'

  # Commit existing working-tree edits on a fresh branch
  patchd run "update dependency pins" --force

  # See what would happen without touching the repository
  patchd run "risky refactor" --dry-run -- make refactor`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForceNewBranch, "force-new-branch", false, "create a fresh branch even on a reusable topic branch")
	runCmd.Flags().BoolVar(&runAutoCommit, "auto-commit", false, "commit pending working-tree changes before the operation")
	runCmd.Flags().BoolVar(&runForce, "force", false, "proceed on a dirty working tree without committing")
	runCmd.Flags().BoolVar(&runSkipValidation, "skip-validation", false, "skip pre-flight tool and test checks")
	runCmd.Flags().BoolVar(&runPush, "push", false, "push the branch after committing")
	runCmd.Flags().BoolVar(&runPullRequest, "pr", false, "open a pull request (implies --push)")
	runCmd.Flags().BoolVar(&runIssue, "issue", false, "open a tracking issue if the run fails")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "simulate every mutating operation; the patch command is not executed")
	runCmd.Flags().StringVar(&runBaseBranch, "base", "", "pull-request base branch (default from config)")
	runCmd.Flags().StringArrayVar(&runTestCommands, "test-command", nil, "validation test command (repeatable)")
	runCmd.Flags().StringVar(&runCoAuthor, "co-author", "", "Co-authored-by trailer, as 'Name <email>'")
	runCmd.Flags().StringArrayVar(&runLabels, "label", nil, "tracking-issue label (repeatable)")
	runCmd.Flags().StringArrayVar(&runPaths, "path", nil, "path to stage (repeatable; default all)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(d.logger) }()

	svc, err := d.newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	description := args[0]
	operation := buildOperation(d.cfg.Repo.Path, args[1:])

	testCommands := runTestCommands
	if testCommands == nil {
		testCommands = d.cfg.Validation.TestCommands
	}

	result, runErr := svc.RunPatch(ctx, &patch.Request{
		Description:   description,
		Operation:     operation,
		AffectedPaths: runPaths,
		Options: patch.Options{
			ForceNewBranch:    runForceNewBranch,
			AutoCommitDirty:   runAutoCommit,
			Force:             runForce,
			SkipValidation:    runSkipValidation,
			Push:              runPush,
			CreatePullRequest: runPullRequest,
			CreateIssue:       runIssue,
			DryRun:            runDryRun,
			BaseBranch:        runBaseBranch,
			TestCommands:      testCommands,
			CoAuthor:          runCoAuthor,
			IssueLabels:       runLabels,
		},
	})

	if err := printResult(cmd, result); err != nil {
		return err
	}
	return runErr
}

// buildOperation turns the trailing command line into the patch operation.
// An empty command is a no-op: the workflow then commits whatever the
// working tree already holds.
func buildOperation(dir string, argv []string) patch.Operation {
	if len(argv) == 0 {
		return func(ctx context.Context) error { return nil }
	}
	return func(ctx context.Context) error {
		c := exec.CommandContext(ctx, argv[0], argv[1:]...)
		c.Dir = dir
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("patch command %q failed: %w", strings.Join(argv, " "), err)
		}
		return nil
	}
}

func printResult(cmd *cobra.Command, result *patch.Result) error {
	if result == nil {
		return nil
	}

	if runJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	}

	status := "FAILED"
	if result.Success {
		status = "OK"
	}
	if result.Simulated {
		status += " (dry run)"
	}
	cmd.Printf("%s  state=%s branch=%s\n", status, result.FinalState, result.BranchName)
	if result.CommitHash != "" {
		cmd.Printf("commit: %s\n", result.CommitHash)
	}
	if result.PRURL != "" {
		cmd.Printf("pull request: %s\n", result.PRURL)
	}
	if result.IssueNumber > 0 {
		cmd.Printf("tracking issue: #%d\n", result.IssueNumber)
	}
	for _, rec := range result.Errors {
		cmd.Printf("error [%s/%s]: %s\n", rec.Category, rec.Step, rec.Message)
	}
	return nil
}
