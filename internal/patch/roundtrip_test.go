package patch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/patchd/internal/gitops"
)

// newRepoClient creates a real repository with one commit and a gitops
// client on top of it.
func newRepoClient(t *testing.T) (string, gitops.Client) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.test", When: time.Now()},
	})
	require.NoError(t, err)

	client, err := gitops.NewClient(&gitops.Config{
		Path:        dir,
		AuthorName:  "test",
		AuthorEmail: "test@example.test",
	}, nil)
	require.NoError(t, err)

	return dir, client
}

func TestCommitThenLastCommitRollbackRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir, client := newRepoClient(t)

	branchBefore, err := client.CurrentBranch(ctx)
	require.NoError(t, err)
	headBefore, err := client.Head(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "widget.go"), []byte("package widget\n"), 0644))

	builder := NewBuilder(client, nil)
	commit, err := builder.Commit(ctx, "fix the widget", nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, headBefore, commit.Hash)

	manager := NewManager(client, nil)
	plan := manager.Plan(RollbackLastCommit, "", true)
	status, err := manager.Execute(ctx, plan)
	require.NoError(t, err)
	assert.True(t, status.Performed)
	require.NotEmpty(t, status.BackupRef)

	// Head, branch, and working tree are back to the pre-commit state.
	head, err := client.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, headBefore, head)

	branch, err := client.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, branchBefore, branch)

	wtStatus, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, wtStatus.IsClean)
	_, statErr := os.Stat(filepath.Join(dir, "widget.go"))
	assert.True(t, os.IsNotExist(statErr), "the committed file is gone after the rollback")

	// The backup ref pins the discarded commit.
	pinned, err := client.ResolveRef(ctx, status.BackupRef)
	require.NoError(t, err)
	assert.Equal(t, commit.Hash, pinned)

	// Re-running the same plan is a no-op success.
	again, err := manager.Execute(ctx, plan)
	require.NoError(t, err)
	assert.False(t, again.Performed)
}
