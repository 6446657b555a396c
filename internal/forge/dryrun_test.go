package forge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRunClientRecordsCalls(t *testing.T) {
	ctx := context.Background()
	dry := NewDryRunClient(nil)

	url, err := dry.CreatePullRequest(ctx, &PullRequestRequest{
		Title: "patch: fix the widget",
		Base:  "main",
		Head:  "patch/20250101-000000-fix-the-widget",
	})
	require.NoError(t, err)
	assert.Contains(t, url, "dry-run")

	number, err := dry.CreateIssue(ctx, &IssueRequest{Title: "patch failed: fix the widget"})
	require.NoError(t, err)
	assert.Equal(t, 1, number)

	require.NoError(t, dry.CommentOnIssue(ctx, number, "details"))

	ok, err := dry.AuthStatus(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	calls := dry.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[0], "create pull request")
	assert.Contains(t, calls[1], "create issue")
	assert.Contains(t, calls[2], "comment on issue #1")
}

func TestDryRunClientIssueNumbersIncrement(t *testing.T) {
	ctx := context.Background()
	dry := NewDryRunClient(nil)

	first, err := dry.CreateIssue(ctx, &IssueRequest{Title: "one"})
	require.NoError(t, err)
	second, err := dry.CreateIssue(ctx, &IssueRequest{Title: "two"})
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestNewGitHubClientValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewGitHubClient(ctx, nil, nil)
	assert.Error(t, err)

	_, err = NewGitHubClient(ctx, &GitHubConfig{Owner: "acme"}, nil)
	assert.ErrorContains(t, err, "owner and repo")

	_, err = NewGitHubClient(ctx, &GitHubConfig{Owner: "acme", Repo: "widgets"}, nil)
	assert.ErrorContains(t, err, "token")
}
