package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/patchd/internal/patch"
)

var (
	rollbackType   string
	rollbackTarget string
	rollbackBackup bool
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the repository to a known-good state",
	Long: `Revert the repository using one of the rollback strategies. A backup
reference is created before anything destructive unless --no-backup is given.

Examples:
  # Discard the last commit (keeps a backup ref)
  patchd rollback --type last-commit

  # Reset hard to a specific commit
  patchd rollback --type specific-commit --target abc1234

  # Discard all uncommitted changes
  patchd rollback --type working-tree`,
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackType, "type", string(patch.RollbackWorkingTree), "rollback type: last-commit, specific-commit, working-tree")
	rollbackCmd.Flags().StringVar(&rollbackTarget, "target", "", "target commit or ref (specific-commit only)")
	rollbackCmd.Flags().BoolVar(&rollbackBackup, "backup", true, "create a backup ref before destructive steps")
}

func runRollback(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	d, err := buildDeps(ctx)
	if err != nil {
		return err
	}

	t := patch.RollbackType(rollbackType)
	switch t {
	case patch.RollbackLastCommit, patch.RollbackWorkingTree:
	case patch.RollbackSpecificCommit:
		if rollbackTarget == "" {
			return fmt.Errorf("--target is required for %s", t)
		}
	default:
		return fmt.Errorf("unsupported rollback type: %s", rollbackType)
	}

	manager := patch.NewManager(d.git, d.logger)
	status, err := manager.Execute(ctx, manager.Plan(t, rollbackTarget, rollbackBackup))
	if err != nil {
		return err
	}

	if !status.Performed {
		cmd.Println("already at target state, nothing to do")
		return nil
	}
	if status.BackupRef != "" {
		cmd.Printf("rolled back, backup ref: %s\n", status.BackupRef)
	} else {
		cmd.Println("rolled back")
	}
	return nil
}
