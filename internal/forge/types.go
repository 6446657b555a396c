package forge

import "context"

// PullRequestRequest describes a pull request to open.
type PullRequestRequest struct {
	// Title is the PR title.
	Title string

	// Body is the PR description in markdown.
	Body string

	// Base is the branch the PR merges into.
	Base string

	// Head is the branch carrying the change.
	Head string

	// Draft opens the PR as a draft.
	Draft bool
}

// IssueRequest describes an issue to open.
type IssueRequest struct {
	// Title is the issue title.
	Title string

	// Body is the issue description in markdown.
	Body string

	// Labels to apply on creation.
	Labels []string
}

// Client is the forge collaborator consumed by the patch workflow.
type Client interface {
	// CreatePullRequest opens a pull request and returns its URL.
	CreatePullRequest(ctx context.Context, req *PullRequestRequest) (string, error)

	// CreateIssue opens an issue and returns its number.
	CreateIssue(ctx context.Context, req *IssueRequest) (int, error)

	// CommentOnIssue posts a comment on an existing issue.
	CommentOnIssue(ctx context.Context, number int, body string) error

	// AuthStatus reports whether the client is authenticated.
	AuthStatus(ctx context.Context) (bool, error)
}
