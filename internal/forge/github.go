package forge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// GitHubConfig configures the GitHub forge client.
type GitHubConfig struct {
	// Owner is the repository owner (user or organization).
	Owner string

	// Repo is the repository name.
	Repo string

	// Token is the API token. Required.
	Token string

	// BaseURL points at a GitHub Enterprise instance. Optional.
	BaseURL string

	// Retry configures API retry behavior. Nil uses defaults.
	Retry *RetryConfig
}

// githubClient implements Client against the GitHub API.
type githubClient struct {
	config *GitHubConfig
	gh     *github.Client
	logger *zap.Logger
}

// NewGitHubClient creates a GitHub forge client with token authentication.
func NewGitHubClient(ctx context.Context, cfg *GitHubConfig, logger *zap.Logger) (Client, error) {
	if cfg == nil {
		return nil, errors.New("github config is required")
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, errors.New("github owner and repo are required")
	}
	if cfg.Token == "" {
		return nil, errors.New("github token not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(ctx, ts)
	gh := github.NewClient(tc)

	if cfg.BaseURL != "" {
		var err error
		gh, err = gh.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URL: %w", err)
		}
	}

	return &githubClient{
		config: cfg,
		gh:     gh,
		logger: logger,
	}, nil
}

func (c *githubClient) CreatePullRequest(ctx context.Context, req *PullRequestRequest) (string, error) {
	if req == nil || req.Title == "" || req.Head == "" || req.Base == "" {
		return "", errors.New("pull request title, head, and base are required")
	}

	var pr *github.PullRequest
	_, err := retryOperation(ctx, c.config.Retry, c.logger, func() (*github.Response, error) {
		var resp *github.Response
		var opErr error
		pr, resp, opErr = c.gh.PullRequests.Create(ctx, c.config.Owner, c.config.Repo, &github.NewPullRequest{
			Title: github.String(req.Title),
			Body:  github.String(req.Body),
			Base:  github.String(req.Base),
			Head:  github.String(req.Head),
			Draft: github.Bool(req.Draft),
		})
		return resp, opErr
	})
	if err != nil {
		return "", fmt.Errorf("failed to create pull request: %w", err)
	}

	c.logger.Info("created pull request",
		zap.String("url", pr.GetHTMLURL()),
		zap.String("head", req.Head),
		zap.String("base", req.Base),
	)
	return pr.GetHTMLURL(), nil
}

func (c *githubClient) CreateIssue(ctx context.Context, req *IssueRequest) (int, error) {
	if req == nil || req.Title == "" {
		return 0, errors.New("issue title is required")
	}

	issueReq := &github.IssueRequest{
		Title: github.String(req.Title),
		Body:  github.String(req.Body),
	}
	if len(req.Labels) > 0 {
		issueReq.Labels = &req.Labels
	}

	var issue *github.Issue
	_, err := retryOperation(ctx, c.config.Retry, c.logger, func() (*github.Response, error) {
		var resp *github.Response
		var opErr error
		issue, resp, opErr = c.gh.Issues.Create(ctx, c.config.Owner, c.config.Repo, issueReq)
		return resp, opErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create issue: %w", err)
	}

	c.logger.Info("created issue", zap.Int("number", issue.GetNumber()))
	return issue.GetNumber(), nil
}

func (c *githubClient) CommentOnIssue(ctx context.Context, number int, body string) error {
	_, err := retryOperation(ctx, c.config.Retry, c.logger, func() (*github.Response, error) {
		_, resp, opErr := c.gh.Issues.CreateComment(ctx, c.config.Owner, c.config.Repo, number, &github.IssueComment{
			Body: github.String(body),
		})
		return resp, opErr
	})
	if err != nil {
		return fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return nil
}

func (c *githubClient) AuthStatus(ctx context.Context) (bool, error) {
	_, resp, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		if resp != nil && resp.Response != nil && resp.StatusCode == 401 {
			return false, nil
		}
		return false, fmt.Errorf("failed to check auth status: %w", err)
	}
	return true, nil
}
