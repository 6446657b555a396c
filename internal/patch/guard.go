package patch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/gitops"
)

// ErrDirtyWorkingTree is returned by EnsureClean when the tree is dirty and
// the caller permitted neither auto-commit nor force.
var ErrDirtyWorkingTree = errors.New("working tree is dirty; set AutoCommitDirty or Force to proceed")

// Guard inspects repository state and enforces or auto-remediates policy
// before any mutation.
type Guard struct {
	git    gitops.Client
	logger *zap.Logger
}

// NewGuard creates a working-tree guard.
func NewGuard(git gitops.Client, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{git: git, logger: logger}
}

// Check reports the current working-tree status. Status is never cached:
// external actors may mutate the tree between workflow steps.
func (g *Guard) Check(ctx context.Context) (*gitops.WorkingTreeStatus, error) {
	return g.git.Status(ctx)
}

// EnsureClean enforces the dirty-tree policy.
//
// A clean tree always passes. On a dirty tree:
//   - autoCommit stages and commits all modified paths with a synthesized
//     message and returns the resulting record. This commit is distinct from
//     the patch commit that follows.
//   - force passes without committing.
//   - neither fails with ErrDirtyWorkingTree, performing zero mutations.
func (g *Guard) EnsureClean(ctx context.Context, status *gitops.WorkingTreeStatus, autoCommit, force bool) (*CommitRecord, error) {
	if status == nil {
		return nil, errors.New("working tree status is required")
	}
	if status.IsClean {
		return nil, nil
	}

	if autoCommit {
		if err := g.git.Stage(ctx, nil); err != nil {
			return nil, fmt.Errorf("failed to stage pending changes: %w", err)
		}

		message := fmt.Sprintf(
			"chore: commit pending changes before patch\n\nAuto-committed %d pending path(s) so the patch applies to a clean tree.",
			len(status.ModifiedPaths),
		)
		hash, err := g.git.Commit(ctx, message)
		if err != nil {
			return nil, fmt.Errorf("failed to auto-commit pending changes: %w", err)
		}

		g.logger.Info("auto-committed dirty working tree",
			zap.String("hash", hash),
			zap.Int("paths", len(status.ModifiedPaths)),
		)
		return &CommitRecord{
			Hash:        hash,
			Message:     message,
			StagedPaths: status.ModifiedPaths,
		}, nil
	}

	if force {
		g.logger.Warn("proceeding on dirty working tree without committing",
			zap.Int("paths", len(status.ModifiedPaths)),
		)
		return nil, nil
	}

	return nil, ErrDirtyWorkingTree
}
