package patch

import (
	"context"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/gitops"
)

// ConflictedPath is one unmerged path from the porcelain status.
type ConflictedPath struct {
	Path string
}

// DefaultGeneratedPatterns lists paths whose content is reproduced by
// tooling, making working-tree acceptance a safe resolution.
var DefaultGeneratedPatterns = []string{
	"go.sum",
	"package-lock.json",
	"yarn.lock",
	"*.lock",
	"*_generated.go",
	"*.gen.go",
}

// ConflictResolver detects merge/rebase conflicts and attempts automatic
// resolution under a conservative allow-list strategy.
type ConflictResolver struct {
	git           gitops.Client
	allowPatterns []string
	logger        *zap.Logger
}

// NewConflictResolver creates a conflict resolver. Nil allowPatterns uses
// DefaultGeneratedPatterns.
func NewConflictResolver(git gitops.Client, allowPatterns []string, logger *zap.Logger) *ConflictResolver {
	if allowPatterns == nil {
		allowPatterns = DefaultGeneratedPatterns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictResolver{git: git, allowPatterns: allowPatterns, logger: logger}
}

// DetectConflicts parses the porcelain status for unmerged-path markers.
func (r *ConflictResolver) DetectConflicts(ctx context.Context) ([]ConflictedPath, error) {
	paths, err := r.git.ConflictedPaths(ctx)
	if err != nil {
		return nil, err
	}
	conflicts := make([]ConflictedPath, 0, len(paths))
	for _, p := range paths {
		conflicts = append(conflicts, ConflictedPath{Path: p})
	}
	return conflicts, nil
}

// TryAutoResolve attempts automatic resolution for conflicts confined to
// generated paths on the allow-list: the working-tree content is accepted
// and restaged, since tooling reproduces those files. Everything else is
// returned as remaining for the caller. Absence of a safe heuristic is a
// reported failure upstream, never a guess: no side is ever preferred
// blindly for hand-written files.
func (r *ConflictResolver) TryAutoResolve(ctx context.Context, conflicts []ConflictedPath) (resolved, remaining []ConflictedPath, err error) {
	for _, conflict := range conflicts {
		if !r.isGenerated(conflict.Path) {
			remaining = append(remaining, conflict)
			continue
		}

		if stageErr := r.git.Stage(ctx, []string{conflict.Path}); stageErr != nil {
			r.logger.Warn("failed to restage generated conflict",
				zap.String("path", conflict.Path),
				zap.Error(stageErr),
			)
			remaining = append(remaining, conflict)
			continue
		}

		r.logger.Info("auto-resolved generated-file conflict", zap.String("path", conflict.Path))
		resolved = append(resolved, conflict)
	}
	return resolved, remaining, nil
}

// isGenerated matches a path against the allow-list, by base name and by
// full path.
func (r *ConflictResolver) isGenerated(p string) bool {
	base := filepath.Base(p)
	for _, pattern := range r.allowPatterns {
		if ok, err := path.Match(pattern, base); err == nil && ok {
			return true
		}
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}
