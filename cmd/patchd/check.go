package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patchd/internal/patch"
)

var checkForceNewBranch bool

var checkCmd = &cobra.Command{
	Use:   "check [description]",
	Short: "Inspect repository state and the branch decision",
	Long: `Inspect the working tree and report what a patch run would do: whether
the tree is clean, which branch is checked out, and the branch the strategy
would pick for the given description. Performs no mutations.

Examples:
  patchd check
  patchd check "fix critical bug in parser"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkForceNewBranch, "force-new-branch", false, "decide as if a fresh branch was requested")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}

	status, err := d.git.Status(ctx)
	if err != nil {
		return err
	}
	current, err := d.git.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("branch: %s\n", current)
	if status.IsClean {
		cmd.Println("working tree: clean")
	} else {
		cmd.Printf("working tree: dirty (%d paths)\n", len(status.ModifiedPaths))
		for _, p := range status.ModifiedPaths {
			cmd.Printf("  %s\n", p)
		}
	}

	if len(args) == 0 {
		return nil
	}

	resolver := patch.NewResolver(&patch.StrategyConfig{
		Prefix:            d.cfg.Branch.Prefix,
		ProtectedPatterns: d.cfg.Branch.Protected,
		TopicPatterns:     d.cfg.Branch.TopicPatterns,
		DisableTimestamps: d.cfg.Branch.DisableTimestamps,
	}, d.logger)

	decision, err := resolver.Resolve(strings.TrimSpace(args[0]), current, checkForceNewBranch)
	if err != nil {
		return err
	}

	if decision.SkipCreation {
		cmd.Printf("decision: reuse %s (%s)\n", decision.NewBranchName, decision.Reason)
	} else {
		cmd.Printf("decision: create %s (%s)\n", decision.NewBranchName, decision.Reason)
	}
	return nil
}
