package patch

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxSlugLength bounds the sanitized description portion of a branch name.
// Truncation happens on the sanitized body, never on the timestamp.
const maxSlugLength = 40

// StrategyConfig configures branch decisions and name synthesis.
type StrategyConfig struct {
	// Prefix is prepended to synthesized names (default: patch).
	Prefix string

	// ProtectedPatterns are branch names or glob patterns that may never be
	// committed to directly (default: main, master, develop, release/*).
	ProtectedPatterns []string

	// TopicPatterns are glob patterns for reusable topic branches
	// (default: feature/*, patch/*, hotfix/*, bugfix/*, fix/*).
	TopicPatterns []string

	// DisableTimestamps omits the timestamp segment from synthesized names.
	DisableTimestamps bool

	// Clock supplies the timestamp; injectable for deterministic tests
	// (default: time.Now).
	Clock func() time.Time
}

// DefaultStrategyConfig returns sensible defaults.
func DefaultStrategyConfig() *StrategyConfig {
	return &StrategyConfig{
		Prefix:            "patch",
		ProtectedPatterns: []string{"main", "master", "develop", "release/*"},
		TopicPatterns:     []string{"feature/*", "patch/*", "hotfix/*", "bugfix/*", "fix/*"},
		Clock:             time.Now,
	}
}

// Resolver decides whether the current branch may be reused or a new branch
// must be created, and computes its name. Given identical inputs and a frozen
// clock, the output is byte-identical.
type Resolver struct {
	config *StrategyConfig
	logger *zap.Logger
}

// NewResolver creates a branch strategy resolver. The config is copied;
// the caller's struct is never written to.
func NewResolver(cfg *StrategyConfig, logger *zap.Logger) *Resolver {
	if cfg == nil {
		cfg = DefaultStrategyConfig()
	}
	own := *cfg
	if own.Prefix == "" {
		own.Prefix = "patch"
	}
	if own.Clock == nil {
		own.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{config: &own, logger: logger}
}

// Resolve produces the branch decision for one request.
//
// A protected current branch makes creation mandatory regardless of
// forceNewBranch. A non-protected topic branch is reused when forceNewBranch
// is false, avoiding branch churn for iterative work on the same topic.
func (r *Resolver) Resolve(description, currentBranch string, forceNewBranch bool) (*BranchDecision, error) {
	protected := matchesAny(r.config.ProtectedPatterns, currentBranch)

	if !forceNewBranch && !protected && matchesAny(r.config.TopicPatterns, currentBranch) {
		decision := &BranchDecision{
			CurrentBranch: currentBranch,
			SkipCreation:  true,
			NewBranchName: currentBranch,
			Reason:        fmt.Sprintf("reusing topic branch %s", currentBranch),
		}
		r.logger.Debug("branch decision", zap.String("reason", decision.Reason))
		return decision, nil
	}

	name, err := r.BranchName(description)
	if err != nil {
		return nil, err
	}

	reason := "creating new branch"
	if protected {
		reason = fmt.Sprintf("current branch %s is protected, branch creation is mandatory", currentBranch)
	} else if forceNewBranch {
		reason = "new branch forced by request"
	}

	decision := &BranchDecision{
		CurrentBranch: currentBranch,
		SkipCreation:  false,
		NewBranchName: name,
		Reason:        reason,
	}
	r.logger.Debug("branch decision",
		zap.String("branch", name),
		zap.String("reason", decision.Reason),
	)
	return decision, nil
}

// IsProtected reports whether a branch matches the protected pattern set.
func (r *Resolver) IsProtected(branch string) bool {
	return matchesAny(r.config.ProtectedPatterns, branch)
}

// BranchName synthesizes a filesystem-safe branch name from a description:
// prefix/YYYYMMDD-HHMMSS-slug, where slug is the sanitized description
// truncated to 40 characters.
func (r *Resolver) BranchName(description string) (string, error) {
	slug := SanitizeBranchSlug(description)
	if slug == "" {
		return "", errors.New("description yields an empty branch slug")
	}
	if len(slug) > maxSlugLength {
		slug = strings.Trim(slug[:maxSlugLength], "-")
	}

	if r.config.DisableTimestamps {
		return r.config.Prefix + "/" + slug, nil
	}

	stamp := r.config.Clock().Format("20060102-150405")
	return r.config.Prefix + "/" + stamp + "-" + slug, nil
}

// SanitizeBranchSlug lower-cases the description, replaces everything outside
// [a-z0-9-] with '-', collapses repeats, and trims leading/trailing dashes.
func SanitizeBranchSlug(description string) string {
	var b strings.Builder
	lastDash := true
	for _, c := range strings.ToLower(description) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// matchesAny reports whether branch matches a pattern exactly or as a glob.
func matchesAny(patterns []string, branch string) bool {
	for _, pattern := range patterns {
		if pattern == branch {
			return true
		}
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}
