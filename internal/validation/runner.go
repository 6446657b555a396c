package validation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of a pre-flight validation run.
type Result struct {
	// AllRequirementsMet is true when every tool was found, every dependency
	// file exists, and every test command exited zero.
	AllRequirementsMet bool

	// MissingTools lists required executables not found on PATH.
	MissingTools []string

	// MissingDependencies lists required dependency files not present in the
	// working directory (e.g. go.mod, package.json).
	MissingDependencies []string

	// FixSuggestions carries human-readable remediation hints, one per
	// failure.
	FixSuggestions []string

	// FailedCommands maps failed test commands to their combined output.
	FailedCommands map[string]string
}

// Runner executes pre-flight validation.
type Runner interface {
	// Run checks tool and dependency requirements, then executes the given
	// test commands. A non-nil error means the runner itself could not
	// execute; command failures are reported through the Result.
	Run(ctx context.Context, testCommands []string) (*Result, error)
}

// Config configures the validation runner.
type Config struct {
	// Dir is the working directory for test commands (default: ".").
	Dir string

	// RequiredTools are executables that must be on PATH.
	RequiredTools []string

	// RequiredFiles are dependency files that must exist under Dir.
	RequiredFiles []string

	// CommandTimeout bounds each test command (default: 5 minutes).
	CommandTimeout time.Duration

	// Shell runs test commands (default: sh -c).
	Shell string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Dir:            ".",
		CommandTimeout: 5 * time.Minute,
		Shell:          "sh",
	}
}

// runner implements Runner on top of os/exec.
type runner struct {
	config *Config
	logger *zap.Logger
}

// NewRunner creates a validation runner.
func NewRunner(cfg *Config, logger *zap.Logger) Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 5 * time.Minute
	}
	if cfg.Shell == "" {
		cfg.Shell = "sh"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runner{config: cfg, logger: logger}
}

func (r *runner) Run(ctx context.Context, testCommands []string) (*Result, error) {
	result := &Result{
		AllRequirementsMet: true,
		FailedCommands:     make(map[string]string),
	}

	for _, tool := range r.config.RequiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			result.AllRequirementsMet = false
			result.MissingTools = append(result.MissingTools, tool)
			result.FixSuggestions = append(result.FixSuggestions,
				fmt.Sprintf("install %s and ensure it is on PATH", tool))
		}
	}

	for _, file := range r.config.RequiredFiles {
		path := filepath.Join(r.config.Dir, file)
		if _, err := os.Stat(path); err != nil {
			result.AllRequirementsMet = false
			result.MissingDependencies = append(result.MissingDependencies, file)
			result.FixSuggestions = append(result.FixSuggestions,
				fmt.Sprintf("expected dependency file %s in %s", file, r.config.Dir))
		}
	}

	// Missing tools make command execution pointless; report early.
	if len(result.MissingTools) > 0 {
		return result, nil
	}

	for _, command := range testCommands {
		output, err := r.runCommand(ctx, command)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			result.AllRequirementsMet = false
			result.FailedCommands[command] = output
			result.FixSuggestions = append(result.FixSuggestions,
				fmt.Sprintf("command %q failed: %v", command, err))
			r.logger.Warn("validation command failed",
				zap.String("command", command),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// runCommand executes a single shell command with the configured timeout and
// returns its combined output.
func (r *runner) runCommand(ctx context.Context, command string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, r.config.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, r.config.Shell, "-c", command)
	cmd.Dir = r.config.Dir

	start := time.Now()
	out, err := cmd.CombinedOutput()
	elapsed := time.Since(start)

	if err != nil {
		if cmdCtx.Err() == context.DeadlineExceeded {
			return string(out), fmt.Errorf("timed out after %s", r.config.CommandTimeout)
		}
		if ctx.Err() != nil {
			return string(out), ctx.Err()
		}
		return string(out), err
	}

	r.logger.Debug("validation command passed",
		zap.String("command", command),
		zap.Duration("elapsed", elapsed),
	)
	return string(out), nil
}
