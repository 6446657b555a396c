package gitops

import "time"

// WorkingTreeStatus describes the state of the checked-out files.
//
// The status is a point-in-time snapshot. Callers re-query at each workflow
// checkpoint rather than caching, since external actors may mutate the tree
// between steps.
type WorkingTreeStatus struct {
	// IsClean is true when no tracked file is modified and nothing is staged.
	IsClean bool

	// ModifiedPaths lists modified, staged, and untracked paths.
	ModifiedPaths []string

	// Stashed is true when pre-existing changes were set aside by the caller.
	Stashed bool
}

// ResetMode selects how Reset treats the index and working tree.
type ResetMode string

const (
	// ResetHard discards index and working-tree changes.
	ResetHard ResetMode = "hard"
	// ResetMixed resets the index but keeps working-tree changes.
	ResetMixed ResetMode = "mixed"
	// ResetSoft moves the branch tip only.
	ResetSoft ResetMode = "soft"
)

// Commit is a single entry from the repository log.
type Commit struct {
	Hash    string
	Message string
	Author  string
	When    time.Time
}
