package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllRequirementsMet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0644))

	r := NewRunner(&Config{
		Dir:           dir,
		RequiredTools: []string{"sh"},
		RequiredFiles: []string{"go.mod"},
	}, nil)

	result, err := r.Run(context.Background(), []string{"true"})
	require.NoError(t, err)

	assert.True(t, result.AllRequirementsMet)
	assert.Empty(t, result.MissingTools)
	assert.Empty(t, result.MissingDependencies)
	assert.Empty(t, result.FailedCommands)
}

func TestRunReportsMissingTools(t *testing.T) {
	r := NewRunner(&Config{
		Dir:           t.TempDir(),
		RequiredTools: []string{"definitely-not-a-real-tool-xyz"},
	}, nil)

	result, err := r.Run(context.Background(), []string{"true"})
	require.NoError(t, err)

	assert.False(t, result.AllRequirementsMet)
	assert.Equal(t, []string{"definitely-not-a-real-tool-xyz"}, result.MissingTools)
	require.NotEmpty(t, result.FixSuggestions)
	assert.Contains(t, result.FixSuggestions[0], "install definitely-not-a-real-tool-xyz")
	// Commands are pointless without the tools; none should have run.
	assert.Empty(t, result.FailedCommands)
}

func TestRunReportsMissingDependencyFiles(t *testing.T) {
	r := NewRunner(&Config{
		Dir:           t.TempDir(),
		RequiredFiles: []string{"go.mod", "package.json"},
	}, nil)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.AllRequirementsMet)
	assert.Equal(t, []string{"go.mod", "package.json"}, result.MissingDependencies)
	assert.Len(t, result.FixSuggestions, 2)
}

func TestRunReportsFailedCommands(t *testing.T) {
	r := NewRunner(&Config{Dir: t.TempDir()}, nil)

	result, err := r.Run(context.Background(), []string{"echo failing output; exit 3", "true"})
	require.NoError(t, err)

	assert.False(t, result.AllRequirementsMet)
	require.Len(t, result.FailedCommands, 1)
	assert.Contains(t, result.FailedCommands["echo failing output; exit 3"], "failing output")
}

func TestRunCommandTimeout(t *testing.T) {
	r := NewRunner(&Config{
		Dir:            t.TempDir(),
		CommandTimeout: 50 * time.Millisecond,
	}, nil)

	result, err := r.Run(context.Background(), []string{"sleep 5"})
	require.NoError(t, err)

	assert.False(t, result.AllRequirementsMet)
	require.NotEmpty(t, result.FixSuggestions)
	assert.Contains(t, result.FixSuggestions[0], "timed out")
}

func TestRunPropagatesCancellation(t *testing.T) {
	r := NewRunner(&Config{Dir: t.TempDir()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx, []string{"sleep 5"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCommandsExecuteInDir(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(&Config{Dir: dir}, nil)

	result, err := r.Run(context.Background(), []string{"test -d ."})
	require.NoError(t, err)
	assert.True(t, result.AllRequirementsMet)

	result, err = r.Run(context.Background(), []string{"touch marker && test -f marker"})
	require.NoError(t, err)
	assert.True(t, result.AllRequirementsMet)
	_, statErr := os.Stat(filepath.Join(dir, "marker"))
	assert.NoError(t, statErr)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ".", cfg.Dir)
	assert.Equal(t, 5*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, "sh", cfg.Shell)
}
