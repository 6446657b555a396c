package patch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/patchd/internal/forge"
	"github.com/fyrsmithlabs/patchd/internal/gitops"
	"github.com/fyrsmithlabs/patchd/internal/validation"
)

// fakeGit is an in-memory gitops.Client with a call log, so tests can assert
// both end state and the exact sequence of mutations.
type fakeGit struct {
	mu sync.Mutex

	current    string
	head       string
	clean      bool
	modified   []string
	conflicted []string
	branches   map[string]string
	refs       map[string]string
	log        []gitops.Commit
	calls      []string
	commitSeq  int

	statusErr       error
	currentErr      error
	stageErr        error
	commitErr       error
	createBranchErr error
	checkoutErr     error
	deleteBranchErr error
	pushErr         error
	resetErr        error
}

func newFakeGit(branch string) *fakeGit {
	g := &fakeGit{
		current:  branch,
		clean:    true,
		branches: map[string]string{},
		refs:     map[string]string{},
	}
	g.commitSeq++
	g.head = fmt.Sprintf("c%02d", g.commitSeq)
	g.branches[branch] = g.head
	g.log = []gitops.Commit{{Hash: g.head, Message: "initial"}}
	return g
}

func (g *fakeGit) record(call string) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
}

// mutatingCalls returns the calls that change repository state.
func (g *fakeGit) mutatingCalls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.calls {
		switch {
		case strings.HasPrefix(c, "status"), strings.HasPrefix(c, "current-branch"),
			strings.HasPrefix(c, "head"), strings.HasPrefix(c, "branch-exists"),
			strings.HasPrefix(c, "resolve-ref"), strings.HasPrefix(c, "log"),
			strings.HasPrefix(c, "conflicted-paths"):
		default:
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGit) Status(ctx context.Context) (*gitops.WorkingTreeStatus, error) {
	g.record("status")
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return &gitops.WorkingTreeStatus{
		IsClean:       g.clean,
		ModifiedPaths: append([]string(nil), g.modified...),
	}, nil
}

func (g *fakeGit) CurrentBranch(ctx context.Context) (string, error) {
	g.record("current-branch")
	if g.currentErr != nil {
		return "", g.currentErr
	}
	return g.current, nil
}

func (g *fakeGit) Head(ctx context.Context) (string, error) {
	g.record("head")
	return g.head, nil
}

func (g *fakeGit) BranchExists(ctx context.Context, name string) (bool, error) {
	g.record("branch-exists " + name)
	_, ok := g.branches[name]
	return ok, nil
}

func (g *fakeGit) CreateBranch(ctx context.Context, name string) error {
	g.record("create-branch " + name)
	if g.createBranchErr != nil {
		return g.createBranchErr
	}
	g.branches[name] = g.head
	g.current = name
	return nil
}

func (g *fakeGit) Checkout(ctx context.Context, name string) error {
	g.record("checkout " + name)
	if g.checkoutErr != nil {
		return g.checkoutErr
	}
	g.current = name
	g.head = g.branches[name]
	return nil
}

func (g *fakeGit) DeleteBranch(ctx context.Context, name string) error {
	g.record("delete-branch " + name)
	if g.deleteBranchErr != nil {
		return g.deleteBranchErr
	}
	delete(g.branches, name)
	return nil
}

func (g *fakeGit) Stage(ctx context.Context, paths []string) error {
	g.record(fmt.Sprintf("stage %d", len(paths)))
	return g.stageErr
}

func (g *fakeGit) Commit(ctx context.Context, message string) (string, error) {
	g.record("commit " + firstLine(message))
	if g.commitErr != nil {
		return "", g.commitErr
	}
	g.commitSeq++
	g.head = fmt.Sprintf("c%02d", g.commitSeq)
	g.branches[g.current] = g.head
	g.clean = true
	g.modified = nil
	g.log = append([]gitops.Commit{{Hash: g.head, Message: message}}, g.log...)
	return g.head, nil
}

func (g *fakeGit) Push(ctx context.Context, branch string, setUpstream bool) error {
	g.record("push " + branch)
	return g.pushErr
}

func (g *fakeGit) Reset(ctx context.Context, target string, mode gitops.ResetMode) error {
	g.record(fmt.Sprintf("reset %s %s", mode, target))
	if g.resetErr != nil {
		return g.resetErr
	}
	hash, err := g.resolve(target)
	if err != nil {
		return err
	}
	g.head = hash
	g.branches[g.current] = hash
	if mode == gitops.ResetHard {
		g.clean = true
		g.modified = nil
	}
	return nil
}

func (g *fakeGit) CreateRef(ctx context.Context, name, target string) error {
	g.record("create-ref " + name)
	hash, err := g.resolve(target)
	if err != nil {
		return err
	}
	g.refs[name] = hash
	return nil
}

func (g *fakeGit) DeleteRef(ctx context.Context, name string) error {
	g.record("delete-ref " + name)
	delete(g.refs, name)
	return nil
}

func (g *fakeGit) ResolveRef(ctx context.Context, name string) (string, error) {
	g.record("resolve-ref " + name)
	return g.resolve(name)
}

func (g *fakeGit) Log(ctx context.Context, limit int) ([]gitops.Commit, error) {
	g.record("log")
	if limit > len(g.log) {
		limit = len(g.log)
	}
	return append([]gitops.Commit(nil), g.log[:limit]...), nil
}

func (g *fakeGit) ConflictedPaths(ctx context.Context) ([]string, error) {
	g.record("conflicted-paths")
	return append([]string(nil), g.conflicted...), nil
}

func (g *fakeGit) resolve(name string) (string, error) {
	if name == "HEAD" {
		return g.head, nil
	}
	if hash, ok := g.refs[name]; ok {
		return hash, nil
	}
	if branch, ok := strings.CutPrefix(name, "refs/heads/"); ok {
		if hash, found := g.branches[branch]; found {
			return hash, nil
		}
		return "", fmt.Errorf("reference not found: %s", name)
	}
	if strings.HasPrefix(name, "refs/") {
		return "", fmt.Errorf("reference not found: %s", name)
	}
	// Treat anything else as a commit hash.
	return name, nil
}

// fakeForge records forge calls and returns canned results.
type fakeForge struct {
	mu sync.Mutex

	calls    []string
	issueSeq int

	prErr      error
	issueErr   error
	commentErr error
}

func (f *fakeForge) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeForge) CreatePullRequest(ctx context.Context, req *forge.PullRequestRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "pull-request "+req.Head)
	f.mu.Unlock()
	if f.prErr != nil {
		return "", f.prErr
	}
	return "https://example.test/pulls/1", nil
}

func (f *fakeForge) CreateIssue(ctx context.Context, req *forge.IssueRequest) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, "issue "+req.Title)
	f.issueSeq++
	n := f.issueSeq
	f.mu.Unlock()
	if f.issueErr != nil {
		return 0, f.issueErr
	}
	return n, nil
}

func (f *fakeForge) CommentOnIssue(ctx context.Context, number int, body string) error {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf("comment #%d", number))
	f.mu.Unlock()
	return f.commentErr
}

func (f *fakeForge) AuthStatus(ctx context.Context) (bool, error) {
	return true, nil
}

// fakeRunner returns a canned validation result.
type fakeRunner struct {
	result *validation.Result
	err    error
	ran    bool
}

func (r *fakeRunner) Run(ctx context.Context, testCommands []string) (*validation.Result, error) {
	r.ran = true
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &validation.Result{AllRequirementsMet: true}, nil
}
