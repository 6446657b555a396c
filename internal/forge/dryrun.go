package forge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DryRunClient simulates forge operations without network calls. Returned
// URLs and numbers are deterministic placeholders.
type DryRunClient struct {
	logger *zap.Logger

	mu       sync.Mutex
	issueSeq int
	calls    []string
}

// NewDryRunClient creates a simulated forge client.
func NewDryRunClient(logger *zap.Logger) *DryRunClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunClient{logger: logger}
}

// Calls returns the operations that would have been performed, in order.
func (d *DryRunClient) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *DryRunClient) record(op string) {
	d.mu.Lock()
	d.calls = append(d.calls, op)
	d.mu.Unlock()
	d.logger.Info("dry run: skipped forge call", zap.String("operation", op))
}

func (d *DryRunClient) CreatePullRequest(ctx context.Context, req *PullRequestRequest) (string, error) {
	d.record(fmt.Sprintf("create pull request %q (%s -> %s)", req.Title, req.Head, req.Base))
	return fmt.Sprintf("https://example.invalid/pulls/dry-run/%s", req.Head), nil
}

func (d *DryRunClient) CreateIssue(ctx context.Context, req *IssueRequest) (int, error) {
	d.record(fmt.Sprintf("create issue %q", req.Title))
	d.mu.Lock()
	d.issueSeq++
	n := d.issueSeq
	d.mu.Unlock()
	return n, nil
}

func (d *DryRunClient) CommentOnIssue(ctx context.Context, number int, body string) error {
	d.record(fmt.Sprintf("comment on issue #%d", number))
	return nil
}

func (d *DryRunClient) AuthStatus(ctx context.Context) (bool, error) {
	return true, nil
}
