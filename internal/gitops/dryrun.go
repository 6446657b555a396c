package gitops

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DryRunClient wraps a Client, passing reads through and short-circuiting
// every mutating call with a simulated success. The full decision logic of
// the workflow still runs, which is how dry runs stay faithful to real runs.
//
// Simulated branch and ref creations are tracked so later reads within the
// same run observe them.
type DryRunClient struct {
	inner  Client
	logger *zap.Logger

	mu            sync.Mutex
	commitSeq     int
	currentBranch string
	branches      map[string]bool
	refs          map[string]string
	mutations     []string
}

// NewDryRunClient wraps inner in a dry-run decorator.
func NewDryRunClient(inner Client, logger *zap.Logger) *DryRunClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunClient{
		inner:    inner,
		logger:   logger,
		branches: make(map[string]bool),
		refs:     make(map[string]string),
	}
}

// Mutations returns the mutating calls that would have been performed, in
// order, for reporting.
func (d *DryRunClient) Mutations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.mutations))
	copy(out, d.mutations)
	return out
}

func (d *DryRunClient) record(op string) {
	d.mu.Lock()
	d.mutations = append(d.mutations, op)
	d.mu.Unlock()
	d.logger.Info("dry run: skipped mutation", zap.String("operation", op))
}

func (d *DryRunClient) Status(ctx context.Context) (*WorkingTreeStatus, error) {
	return d.inner.Status(ctx)
}

func (d *DryRunClient) CurrentBranch(ctx context.Context) (string, error) {
	d.mu.Lock()
	simulated := d.currentBranch
	d.mu.Unlock()
	if simulated != "" {
		return simulated, nil
	}
	return d.inner.CurrentBranch(ctx)
}

func (d *DryRunClient) Head(ctx context.Context) (string, error) {
	return d.inner.Head(ctx)
}

func (d *DryRunClient) BranchExists(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	created := d.branches[name]
	d.mu.Unlock()
	if created {
		return true, nil
	}
	return d.inner.BranchExists(ctx, name)
}

func (d *DryRunClient) CreateBranch(ctx context.Context, name string) error {
	d.record(fmt.Sprintf("create branch %s", name))
	d.mu.Lock()
	d.branches[name] = true
	d.currentBranch = name
	d.mu.Unlock()
	return nil
}

func (d *DryRunClient) Checkout(ctx context.Context, name string) error {
	d.record(fmt.Sprintf("checkout %s", name))
	d.mu.Lock()
	d.currentBranch = name
	d.mu.Unlock()
	return nil
}

func (d *DryRunClient) DeleteBranch(ctx context.Context, name string) error {
	d.record(fmt.Sprintf("delete branch %s", name))
	d.mu.Lock()
	delete(d.branches, name)
	d.mu.Unlock()
	return nil
}

func (d *DryRunClient) Stage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		d.record("stage all changes")
	} else {
		d.record(fmt.Sprintf("stage %d path(s)", len(paths)))
	}
	return nil
}

func (d *DryRunClient) Commit(ctx context.Context, message string) (string, error) {
	d.record(fmt.Sprintf("commit %q", firstLine(message)))
	d.mu.Lock()
	d.commitSeq++
	seq := d.commitSeq
	d.mu.Unlock()

	// Deterministic per message+sequence so repeated dry runs compare equal.
	sum := sha1.Sum([]byte(fmt.Sprintf("dry-run:%d:%s", seq, message)))
	return hex.EncodeToString(sum[:]), nil
}

func (d *DryRunClient) Push(ctx context.Context, branch string, setUpstream bool) error {
	d.record(fmt.Sprintf("push %s (set upstream: %t)", branch, setUpstream))
	return nil
}

func (d *DryRunClient) Reset(ctx context.Context, target string, mode ResetMode) error {
	d.record(fmt.Sprintf("reset --%s %s", mode, target))
	return nil
}

func (d *DryRunClient) CreateRef(ctx context.Context, name, target string) error {
	d.record(fmt.Sprintf("create ref %s -> %s", name, target))
	d.mu.Lock()
	d.refs[name] = target
	d.mu.Unlock()
	return nil
}

func (d *DryRunClient) DeleteRef(ctx context.Context, name string) error {
	d.record(fmt.Sprintf("delete ref %s", name))
	d.mu.Lock()
	delete(d.refs, name)
	d.mu.Unlock()
	return nil
}

func (d *DryRunClient) ResolveRef(ctx context.Context, name string) (string, error) {
	d.mu.Lock()
	target, ok := d.refs[name]
	d.mu.Unlock()
	if ok {
		return d.inner.ResolveRef(ctx, target)
	}
	return d.inner.ResolveRef(ctx, name)
}

func (d *DryRunClient) Log(ctx context.Context, limit int) ([]Commit, error) {
	return d.inner.Log(ctx, limit)
}

func (d *DryRunClient) ConflictedPaths(ctx context.Context) ([]string, error) {
	return d.inner.ConflictedPaths(ctx)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
