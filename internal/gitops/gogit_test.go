package gitops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a repository with one commit and returns its directory,
// the raw go-git handle, and a Client on top of it.
func initRepo(t *testing.T) (string, *git.Repository, Client) {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	writeFile(t, dir, "README.md", "hello\n")
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.test", When: time.Now()},
	})
	require.NoError(t, err)

	client, err := NewClient(&Config{
		Path:        dir,
		AuthorName:  "test",
		AuthorEmail: "test@example.test",
	}, nil)
	require.NoError(t, err)

	return dir, repo, client
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestNewClientMissingRepository(t *testing.T) {
	_, err := NewClient(&Config{Path: t.TempDir()}, nil)
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	dir, _, client := initRepo(t)
	ctx := context.Background()

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsClean)
	assert.Empty(t, status.ModifiedPaths)

	writeFile(t, dir, "new.go", "package main\n")
	writeFile(t, dir, "README.md", "changed\n")

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.IsClean)
	assert.Equal(t, []string{"README.md", "new.go"}, status.ModifiedPaths)
}

func TestCurrentBranch(t *testing.T) {
	_, _, client := initRepo(t)

	branch, err := client.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestCurrentBranchDetachedHead(t *testing.T) {
	_, repo, client := initRepo(t)
	ctx := context.Background()

	head, err := repo.Head()
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: head.Hash()}))

	_, err = client.CurrentBranch(ctx)
	assert.ErrorContains(t, err, "detached")
}

func TestCreateBranchAndCheckout(t *testing.T) {
	_, _, client := initRepo(t)
	ctx := context.Background()

	require.NoError(t, client.CreateBranch(ctx, "patch/20250101-000000-test"))

	branch, err := client.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "patch/20250101-000000-test", branch)

	exists, err := client.BranchExists(ctx, "patch/20250101-000000-test")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.Checkout(ctx, "master"))
	branch, err = client.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	require.NoError(t, client.DeleteBranch(ctx, "patch/20250101-000000-test"))
	exists, err = client.BranchExists(ctx, "patch/20250101-000000-test")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCreateBranchKeepsWorkingTreeChanges(t *testing.T) {
	dir, _, client := initRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "pending.go", "package main\n")
	require.NoError(t, client.CreateBranch(ctx, "patch/keep"))

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status.ModifiedPaths, "pending.go")
}

func TestStageAndCommit(t *testing.T) {
	dir, _, client := initRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "a.go", "package a\n")
	writeFile(t, dir, "b.go", "package b\n")

	// Staging a named subset leaves the rest dirty.
	require.NoError(t, client.Stage(ctx, []string{"a.go"}))
	hash, err := client.Commit(ctx, "patch: add a")
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, status.ModifiedPaths)

	// Staging everything cleans the tree.
	require.NoError(t, client.Stage(ctx, nil))
	_, err = client.Commit(ctx, "patch: add b")
	require.NoError(t, err)

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsClean)
}

func TestCommitEmptyStagingArea(t *testing.T) {
	_, _, client := initRepo(t)

	_, err := client.Commit(context.Background(), "patch: nothing")
	assert.ErrorIs(t, err, ErrNothingToCommit)
}

func TestResetHard(t *testing.T) {
	dir, _, client := initRepo(t)
	ctx := context.Background()

	first, err := client.Head(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "x.go", "package x\n")
	require.NoError(t, client.Stage(ctx, nil))
	_, err = client.Commit(ctx, "patch: add x")
	require.NoError(t, err)

	require.NoError(t, client.Reset(ctx, first, ResetHard))

	head, err := client.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, head)

	_, err = os.Stat(filepath.Join(dir, "x.go"))
	assert.True(t, os.IsNotExist(err), "hard reset must remove the committed file")
}

func TestRefLifecycle(t *testing.T) {
	_, _, client := initRepo(t)
	ctx := context.Background()

	head, err := client.Head(ctx)
	require.NoError(t, err)

	require.NoError(t, client.CreateRef(ctx, "refs/patchd/backup/abc123", "HEAD"))

	resolved, err := client.ResolveRef(ctx, "refs/patchd/backup/abc123")
	require.NoError(t, err)
	assert.Equal(t, head, resolved)

	require.NoError(t, client.DeleteRef(ctx, "refs/patchd/backup/abc123"))
	_, err = client.ResolveRef(ctx, "refs/patchd/backup/abc123")
	assert.Error(t, err)
}

func TestResolveRefAcceptsRawHash(t *testing.T) {
	_, _, client := initRepo(t)
	ctx := context.Background()

	head, err := client.Head(ctx)
	require.NoError(t, err)

	resolved, err := client.ResolveRef(ctx, head)
	require.NoError(t, err)
	assert.Equal(t, head, resolved)
}

func TestLog(t *testing.T) {
	dir, _, client := initRepo(t)
	ctx := context.Background()

	writeFile(t, dir, "x.go", "package x\n")
	require.NoError(t, client.Stage(ctx, nil))
	second, err := client.Commit(ctx, "patch: add x")
	require.NoError(t, err)

	commits, err := client.Log(ctx, 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, second, commits[0].Hash)
	assert.Equal(t, "patch: add x", commits[0].Message)
	assert.Equal(t, "initial", commits[1].Message)

	one, err := client.Log(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestPushWithoutRemote(t *testing.T) {
	_, _, client := initRepo(t)

	err := client.Push(context.Background(), "master", false)
	assert.Error(t, err)
}

func TestIsUnmerged(t *testing.T) {
	tests := []struct {
		name string
		fs   git.FileStatus
		want bool
	}{
		{"both modified", git.FileStatus{Staging: git.UpdatedButUnmerged, Worktree: git.UpdatedButUnmerged}, true},
		{"unmerged staging only", git.FileStatus{Staging: git.UpdatedButUnmerged, Worktree: git.Unmodified}, true},
		{"both added", git.FileStatus{Staging: git.Added, Worktree: git.Added}, true},
		{"both deleted", git.FileStatus{Staging: git.Deleted, Worktree: git.Deleted}, true},
		{"plain modification", git.FileStatus{Staging: git.Unmodified, Worktree: git.Modified}, false},
		{"staged addition", git.FileStatus{Staging: git.Added, Worktree: git.Unmodified}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnmerged(&tt.fs))
		})
	}
}

func TestResolveRevisionExpression(t *testing.T) {
	dir, _, client := initRepo(t)
	ctx := context.Background()

	first, err := client.Head(ctx)
	require.NoError(t, err)

	writeFile(t, dir, "x.go", "package x\n")
	require.NoError(t, client.Stage(ctx, nil))
	_, err = client.Commit(ctx, "patch: add x")
	require.NoError(t, err)

	parent, err := client.ResolveRef(ctx, "HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, first, parent)
}
