package patch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/gitops"
)

// backupRefPrefix is the namespace for backup references. Refs outside
// refs/heads are invisible to normal branch listings but survive resets.
const backupRefPrefix = "refs/patchd/backup/"

// Manager reverts the repository to a known-good state using one of the
// RollbackType strategies.
//
// When a plan requests a backup, the backup reference is created before any
// destructive operation, unconditionally. Execute is idempotent: running the
// same plan twice after a success is a no-op success, since the target state
// is already reached.
type Manager struct {
	git    gitops.Client
	logger *zap.Logger

	mu            sync.Mutex
	branchBackups map[string]string
}

// NewManager creates a rollback manager.
func NewManager(git gitops.Client, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		git:           git,
		logger:        logger,
		branchBackups: make(map[string]string),
	}
}

// Plan constructs a rollback plan. Plans are built lazily, only when a
// failure occurs; construction performs no repository access.
func (m *Manager) Plan(t RollbackType, target string, createBackup bool) *RollbackPlan {
	return &RollbackPlan{
		Type:         t,
		Target:       target,
		CreateBackup: createBackup,
	}
}

// BackupBranch records a backup ref for the branch's current tip and
// remembers it, so a later Branch rollback can restore the tip even after
// the branch itself is deleted.
func (m *Manager) BackupBranch(ctx context.Context, branch string) (string, error) {
	tip, err := m.git.ResolveRef(ctx, "refs/heads/"+branch)
	if err != nil {
		return "", fmt.Errorf("failed to resolve branch %s: %w", branch, err)
	}

	name := backupRefPrefix + uuid.New().String()[:8]
	if err := m.git.CreateRef(ctx, name, tip); err != nil {
		return "", fmt.Errorf("failed to create backup ref: %w", err)
	}

	m.mu.Lock()
	m.branchBackups[branch] = name
	m.mu.Unlock()

	m.logger.Info("created branch backup ref",
		zap.String("branch", branch),
		zap.String("ref", name),
	)
	return name, nil
}

// Execute applies a rollback plan. The returned status carries the backup
// ref so a human can recover manually if a later step fails. Rollback
// failures are never retried automatically.
func (m *Manager) Execute(ctx context.Context, plan *RollbackPlan) (*RollbackStatus, error) {
	if plan == nil {
		return nil, errors.New("rollback plan is required")
	}

	switch plan.Type {
	case RollbackLastCommit:
		return m.executeLastCommit(ctx, plan)
	case RollbackSpecificCommit:
		return m.executeSpecificCommit(ctx, plan)
	case RollbackWorkingTree:
		return m.executeWorkingTree(ctx, plan)
	case RollbackBranch:
		return m.executeBranch(ctx, plan)
	default:
		return nil, fmt.Errorf("unknown rollback type: %s", plan.Type)
	}
}

func (m *Manager) executeLastCommit(ctx context.Context, plan *RollbackPlan) (*RollbackStatus, error) {
	head, err := m.git.Head(ctx)
	if err != nil {
		return nil, err
	}

	// A prior successful execute pinned the end state.
	if plan.resolvedTarget != "" && head == plan.resolvedTarget {
		return &RollbackStatus{Performed: false, BackupRef: plan.BackupRef}, nil
	}

	commits, err := m.git.Log(ctx, 2)
	if err != nil {
		return nil, err
	}
	if len(commits) < 2 {
		return nil, fmt.Errorf("cannot discard last commit: %s has no parent", head)
	}
	parent := commits[1].Hash

	if err := m.backup(ctx, plan, head); err != nil {
		return nil, err
	}
	if err := m.git.Reset(ctx, parent, gitops.ResetHard); err != nil {
		return nil, fmt.Errorf("failed to discard last commit: %w", err)
	}
	plan.resolvedTarget = parent

	m.logger.Info("discarded last commit",
		zap.String("was", head),
		zap.String("now", parent),
	)
	return &RollbackStatus{Performed: true, BackupRef: plan.BackupRef}, nil
}

func (m *Manager) executeSpecificCommit(ctx context.Context, plan *RollbackPlan) (*RollbackStatus, error) {
	if plan.Target == "" {
		return nil, errors.New("specific-commit rollback requires a target")
	}

	head, err := m.git.Head(ctx)
	if err != nil {
		return nil, err
	}
	target, err := m.git.ResolveRef(ctx, plan.Target)
	if err != nil {
		return nil, err
	}
	if head == target {
		return &RollbackStatus{Performed: false, BackupRef: plan.BackupRef}, nil
	}

	if err := m.backup(ctx, plan, head); err != nil {
		return nil, err
	}
	if err := m.git.Reset(ctx, target, gitops.ResetHard); err != nil {
		return nil, fmt.Errorf("failed to reset to %s: %w", plan.Target, err)
	}
	plan.resolvedTarget = target

	return &RollbackStatus{Performed: true, BackupRef: plan.BackupRef}, nil
}

func (m *Manager) executeWorkingTree(ctx context.Context, plan *RollbackPlan) (*RollbackStatus, error) {
	status, err := m.git.Status(ctx)
	if err != nil {
		return nil, err
	}
	if status.IsClean {
		return &RollbackStatus{Performed: false, BackupRef: plan.BackupRef}, nil
	}

	head, err := m.git.Head(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.backup(ctx, plan, head); err != nil {
		return nil, err
	}
	if err := m.git.Reset(ctx, head, gitops.ResetHard); err != nil {
		return nil, fmt.Errorf("failed to discard working-tree changes: %w", err)
	}

	m.logger.Info("discarded working-tree changes",
		zap.Int("paths", len(status.ModifiedPaths)),
	)
	return &RollbackStatus{Performed: true, BackupRef: plan.BackupRef}, nil
}

func (m *Manager) executeBranch(ctx context.Context, plan *RollbackPlan) (*RollbackStatus, error) {
	branch := plan.Target
	if branch == "" {
		return nil, errors.New("branch rollback requires a branch name")
	}

	backupRef := plan.BackupRef
	if backupRef == "" {
		m.mu.Lock()
		backupRef = m.branchBackups[branch]
		m.mu.Unlock()
	}
	if backupRef == "" {
		return nil, fmt.Errorf("no backup ref recorded for branch %s", branch)
	}
	plan.BackupRef = backupRef

	desired, err := m.git.ResolveRef(ctx, backupRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup ref %s: %w", backupRef, err)
	}

	exists, err := m.git.BranchExists(ctx, branch)
	if err != nil {
		return nil, err
	}

	if !exists {
		// Branch was deleted: recreate it from the backup ref.
		if err := m.git.CreateRef(ctx, "refs/heads/"+branch, desired); err != nil {
			return nil, fmt.Errorf("failed to recreate branch %s: %w", branch, err)
		}
		m.logger.Info("recreated deleted branch from backup",
			zap.String("branch", branch),
			zap.String("ref", backupRef),
		)
		return &RollbackStatus{Performed: true, BackupRef: backupRef}, nil
	}

	tip, err := m.git.ResolveRef(ctx, "refs/heads/"+branch)
	if err != nil {
		return nil, err
	}
	if tip == desired {
		return &RollbackStatus{Performed: false, BackupRef: backupRef}, nil
	}

	current, err := m.git.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	if current == branch {
		// Restoring the checked-out branch must move the worktree too.
		if err := m.git.Reset(ctx, desired, gitops.ResetHard); err != nil {
			return nil, fmt.Errorf("failed to restore branch %s: %w", branch, err)
		}
	} else {
		if err := m.git.CreateRef(ctx, "refs/heads/"+branch, desired); err != nil {
			return nil, fmt.Errorf("failed to restore branch %s: %w", branch, err)
		}
	}

	m.logger.Info("restored branch to recorded tip",
		zap.String("branch", branch),
		zap.String("was", tip),
		zap.String("now", desired),
	)
	return &RollbackStatus{Performed: true, BackupRef: backupRef}, nil
}

// backup creates the backup ref ahead of the destructive step. This ordering
// is the one atomicity requirement of the rollback path: the ref must exist
// before anything is destroyed.
func (m *Manager) backup(ctx context.Context, plan *RollbackPlan, target string) error {
	if !plan.CreateBackup || plan.BackupRef != "" {
		return nil
	}

	name := backupRefPrefix + uuid.New().String()[:8]
	if err := m.git.CreateRef(ctx, name, target); err != nil {
		return fmt.Errorf("failed to create backup ref before rollback: %w", err)
	}
	plan.BackupRef = name

	m.logger.Info("created backup ref", zap.String("ref", name), zap.String("target", target))
	return nil
}
