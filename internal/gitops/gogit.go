package gitops

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
)

// ErrNothingToCommit is returned by Commit when the staging area produces no
// change. The workflow reports this instead of silently ignoring it, since it
// usually means the patch operation had no effect.
var ErrNothingToCommit = errors.New("nothing to commit: staging area is empty")

// Config configures the go-git backed client.
type Config struct {
	// Path is the repository checkout directory.
	Path string

	// Remote is the remote name used for pushes (default: origin).
	Remote string

	// AuthorName and AuthorEmail are used for commit signatures.
	AuthorName  string
	AuthorEmail string

	// Token authenticates pushes over HTTPS. Optional for local-only use.
	Token string
}

// DefaultConfig returns sensible defaults for the current directory.
func DefaultConfig() *Config {
	return &Config{
		Path:        ".",
		Remote:      "origin",
		AuthorName:  "patchd",
		AuthorEmail: "patchd@localhost",
	}
}

// gogitClient implements Client on top of go-git.
type gogitClient struct {
	config *Config
	repo   *git.Repository
	logger *zap.Logger
}

// NewClient opens the repository at cfg.Path and returns a Client.
func NewClient(cfg *Config, logger *zap.Logger) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	repo, err := git.PlainOpen(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", cfg.Path, err)
	}

	return &gogitClient{
		config: cfg,
		repo:   repo,
		logger: logger,
	}, nil
}

func (c *gogitClient) Status(ctx context.Context) (*WorkingTreeStatus, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	status := &WorkingTreeStatus{IsClean: st.IsClean()}
	for path, fs := range st {
		if fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified {
			status.ModifiedPaths = append(status.ModifiedPaths, path)
		}
	}
	sort.Strings(status.ModifiedPaths)

	return status, nil
}

func (c *gogitClient) CurrentBranch(ctx context.Context) (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}
	return head.Name().Short(), nil
}

func (c *gogitClient) Head(ctx context.Context) (string, error) {
	head, err := c.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return head.Hash().String(), nil
}

func (c *gogitClient) BranchExists(ctx context.Context, name string) (bool, error) {
	_, err := c.repo.Reference(plumbing.NewBranchReferenceName(name), false)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up branch %s: %w", name, err)
	}
	return true, nil
}

func (c *gogitClient) CreateBranch(ctx context.Context, name string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Keep:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}

	c.logger.Debug("created branch", zap.String("branch", name))
	return nil
}

func (c *gogitClient) Checkout(ctx context.Context, name string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Keep:   true,
	})
	if err != nil {
		return fmt.Errorf("failed to checkout branch %s: %w", name, err)
	}
	return nil
}

func (c *gogitClient) DeleteBranch(ctx context.Context, name string) error {
	if err := c.repo.Storer.RemoveReference(plumbing.NewBranchReferenceName(name)); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", name, err)
	}
	// Branch tracking config may not exist for local-only branches.
	if err := c.repo.DeleteBranch(name); err != nil && !errors.Is(err, git.ErrBranchNotFound) {
		return fmt.Errorf("failed to delete branch config for %s: %w", name, err)
	}
	return nil
}

func (c *gogitClient) Stage(ctx context.Context, paths []string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if len(paths) == 0 {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return fmt.Errorf("failed to stage all changes: %w", err)
		}
		return nil
	}

	for _, path := range paths {
		if _, err := wt.Add(path); err != nil {
			return fmt.Errorf("failed to stage %s: %w", path, err)
		}
	}
	return nil
}

func (c *gogitClient) Commit(ctx context.Context, message string) (string, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.config.AuthorName,
			Email: c.config.AuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", ErrNothingToCommit
		}
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	c.logger.Debug("created commit", zap.String("hash", hash.String()))
	return hash.String(), nil
}

func (c *gogitClient) Push(ctx context.Context, branch string, setUpstream bool) error {
	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	opts := &git.PushOptions{
		RemoteName: c.config.Remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
	}
	if c.config.Token != "" {
		opts.Auth = &githttp.BasicAuth{
			Username: "x-access-token",
			Password: c.config.Token,
		}
	}

	err := c.repo.PushContext(ctx, opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push branch %s: %w", branch, err)
	}

	if setUpstream {
		err := c.repo.CreateBranch(&gitconfig.Branch{
			Name:   branch,
			Remote: c.config.Remote,
			Merge:  plumbing.NewBranchReferenceName(branch),
		})
		if err != nil && !errors.Is(err, git.ErrBranchExists) {
			return fmt.Errorf("failed to set upstream for %s: %w", branch, err)
		}
	}

	c.logger.Debug("pushed branch", zap.String("branch", branch), zap.Bool("set_upstream", setUpstream))
	return nil
}

func (c *gogitClient) Reset(ctx context.Context, target string, mode ResetMode) error {
	hash, err := c.resolve(target)
	if err != nil {
		return err
	}

	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	var gitMode git.ResetMode
	switch mode {
	case ResetHard:
		gitMode = git.HardReset
	case ResetSoft:
		gitMode = git.SoftReset
	case ResetMixed:
		gitMode = git.MixedReset
	default:
		return fmt.Errorf("unknown reset mode: %s", mode)
	}

	if err := wt.Reset(&git.ResetOptions{Commit: hash, Mode: gitMode}); err != nil {
		return fmt.Errorf("failed to reset to %s: %w", target, err)
	}

	c.logger.Debug("reset branch tip", zap.String("target", target), zap.String("mode", string(mode)))
	return nil
}

func (c *gogitClient) CreateRef(ctx context.Context, name, target string) error {
	hash, err := c.resolve(target)
	if err != nil {
		return err
	}

	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), hash)
	if err := c.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("failed to create ref %s: %w", name, err)
	}
	return nil
}

func (c *gogitClient) DeleteRef(ctx context.Context, name string) error {
	if err := c.repo.Storer.RemoveReference(plumbing.ReferenceName(name)); err != nil {
		return fmt.Errorf("failed to delete ref %s: %w", name, err)
	}
	return nil
}

func (c *gogitClient) ResolveRef(ctx context.Context, name string) (string, error) {
	hash, err := c.resolve(name)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

func (c *gogitClient) Log(ctx context.Context, limit int) ([]Commit, error) {
	iter, err := c.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < limit {
		commit, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, Commit{
			Hash:    commit.Hash.String(),
			Message: commit.Message,
			Author:  commit.Author.Name,
			When:    commit.Author.When,
		})
	}
	return commits, nil
}

func (c *gogitClient) ConflictedPaths(ctx context.Context) ([]string, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}

	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var paths []string
	for path, fs := range st {
		if isUnmerged(fs) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// isUnmerged reports whether a file status carries an unmerged-path marker
// (DD, AU, UD, UA, DU, AA, UU in porcelain terms).
func isUnmerged(fs *git.FileStatus) bool {
	if fs.Staging == git.UpdatedButUnmerged || fs.Worktree == git.UpdatedButUnmerged {
		return true
	}
	if fs.Staging == git.Added && fs.Worktree == git.Added {
		return true
	}
	if fs.Staging == git.Deleted && fs.Worktree == git.Deleted {
		return true
	}
	return false
}

// resolve turns a hash or revision expression into a commit hash.
func (c *gogitClient) resolve(target string) (plumbing.Hash, error) {
	if plumbing.IsHash(target) {
		return plumbing.NewHash(target), nil
	}
	hash, err := c.repo.ResolveRevision(plumbing.Revision(target))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	return *hash, nil
}
