package patch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/gitops"
)

// maxSubjectLength bounds the commit subject line.
const maxSubjectLength = 72

// conventionalSubject matches descriptions that already carry a
// conventional-commit prefix, e.g. "fix(parser): ..." or "feat!: ...".
var conventionalSubject = regexp.MustCompile(`^[a-z]+(\([^)]+\))?!?: `)

// Builder stages affected paths and produces a structured commit.
type Builder struct {
	git    gitops.Client
	logger *zap.Logger
}

// NewBuilder creates a commit builder.
func NewBuilder(git gitops.Client, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{git: git, logger: logger}
}

// Commit stages exactly affectedPaths when non-empty (all pending changes
// otherwise) and records a commit with a conventional-commit-style subject
// derived from the description, plus an optional Co-authored-by trailer.
//
// An empty staging area is a reported failure, not a silent no-op: it
// usually means the caller's operation had no effect.
func (b *Builder) Commit(ctx context.Context, description string, affectedPaths []string, coAuthor string) (*CommitRecord, error) {
	if err := b.git.Stage(ctx, affectedPaths); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}

	message := CommitMessage(description, coAuthor)
	hash, err := b.git.Commit(ctx, message)
	if err != nil {
		if errors.Is(err, gitops.ErrNothingToCommit) {
			return nil, fmt.Errorf("patch produced no changes: %w", err)
		}
		return nil, fmt.Errorf("failed to commit patch: %w", err)
	}

	b.logger.Info("created patch commit",
		zap.String("hash", hash),
		zap.Int("staged_paths", len(affectedPaths)),
	)
	return &CommitRecord{
		Hash:        hash,
		Message:     message,
		StagedPaths: affectedPaths,
		CoAuthor:    coAuthor,
	}, nil
}

// CommitMessage builds the structured commit message: a conventional-style
// subject line, the full description as body when the subject truncated it,
// and an optional Co-authored-by trailer.
func CommitMessage(description, coAuthor string) string {
	subject := strings.TrimSpace(description)
	if !conventionalSubject.MatchString(subject) {
		subject = "patch: " + subject
	}

	var body string
	if idx := strings.IndexByte(subject, '\n'); idx >= 0 {
		body = strings.TrimSpace(subject[idx+1:])
		subject = strings.TrimSpace(subject[:idx])
	}
	if len(subject) > maxSubjectLength {
		if body == "" {
			body = subject
		}
		subject = strings.TrimRight(subject[:maxSubjectLength-3], " ") + "..."
	}

	message := subject
	if body != "" {
		message += "\n\n" + body
	}
	if coAuthor != "" {
		message += "\n\nCo-authored-by: " + coAuthor
	}
	return message
}
