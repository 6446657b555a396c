package gitops

import "context"

// Client is the version-control backend consumed by the patch workflow.
//
// All methods are synchronous and mockable. Mutating methods are the ones the
// DryRun decorator intercepts: CreateBranch, Checkout, DeleteBranch, Stage,
// Commit, Push, Reset, CreateRef, DeleteRef.
type Client interface {
	// Status reports the current working-tree state.
	Status(ctx context.Context) (*WorkingTreeStatus, error)

	// CurrentBranch returns the short name of the checked-out branch.
	CurrentBranch(ctx context.Context) (string, error)

	// Head returns the hash of the current HEAD commit.
	Head(ctx context.Context) (string, error)

	// BranchExists reports whether a local branch ref exists.
	BranchExists(ctx context.Context, name string) (bool, error)

	// CreateBranch creates a branch at HEAD and checks it out.
	CreateBranch(ctx context.Context, name string) error

	// Checkout switches to an existing branch.
	Checkout(ctx context.Context, name string) error

	// DeleteBranch removes a local branch ref.
	DeleteBranch(ctx context.Context, name string) error

	// Stage adds the given paths to the index. An empty slice stages all
	// pending changes, including untracked files.
	Stage(ctx context.Context, paths []string) error

	// Commit records the staged changes and returns the new commit hash.
	// Returns ErrNothingToCommit when the staging area produces no change.
	Commit(ctx context.Context, message string) (string, error)

	// Push uploads a branch to the default remote, optionally recording
	// upstream tracking configuration.
	Push(ctx context.Context, branch string, setUpstream bool) error

	// Reset moves the current branch tip to target with the given mode.
	Reset(ctx context.Context, target string, mode ResetMode) error

	// CreateRef creates or updates an arbitrary ref (e.g. a backup ref)
	// pointing at target, which may be a hash or a revision expression.
	CreateRef(ctx context.Context, name, target string) error

	// DeleteRef removes an arbitrary ref.
	DeleteRef(ctx context.Context, name string) error

	// ResolveRef resolves a ref or revision expression to a commit hash.
	ResolveRef(ctx context.Context, name string) (string, error)

	// Log returns up to limit commits reachable from HEAD, newest first.
	Log(ctx context.Context, limit int) ([]Commit, error)

	// ConflictedPaths lists unmerged paths from the porcelain status.
	ConflictedPaths(ctx context.Context) ([]string, error)
}
