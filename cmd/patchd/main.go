// Package main implements the patchd CLI for running patch workflows
// against a local repository checkout.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patchd/internal/config"
	"github.com/fyrsmithlabs/patchd/internal/forge"
	"github.com/fyrsmithlabs/patchd/internal/gitops"
	"github.com/fyrsmithlabs/patchd/internal/logging"
	"github.com/fyrsmithlabs/patchd/internal/patch"
	"github.com/fyrsmithlabs/patchd/internal/validation"
)

var (
	// configPath overrides the default config file location
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "patchd",
	Short: "Patch workflow orchestrator for git repositories",
	Long: `patchd automates the full lifecycle of applying a change to a git
repository: branch strategy, working-tree guard, the patch operation itself,
commit, push, and optional pull request, with automatic rollback on failure.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/patchd/config.yaml)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rollbackCmd)
}

// deps bundles everything a command needs after configuration loading.
type deps struct {
	cfg    *config.Config
	logger *zap.Logger
	git    gitops.Client
	forge  forge.Client
	runner validation.Runner
}

// buildDeps loads configuration and constructs the shared collaborators.
// The forge client is only built when owner/repo are configured; commands
// that need it check for nil.
func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	git, err := gitops.NewClient(&gitops.Config{
		Path:        cfg.Repo.Path,
		Remote:      cfg.Repo.Remote,
		AuthorName:  cfg.Repo.AuthorName,
		AuthorEmail: cfg.Repo.AuthorEmail,
		Token:       cfg.Forge.Token.Value(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	var forgeClient forge.Client
	if cfg.Forge.Owner != "" && cfg.Forge.Token.IsSet() {
		forgeClient, err = forge.NewGitHubClient(ctx, &forge.GitHubConfig{
			Owner:   cfg.Forge.Owner,
			Repo:    cfg.Forge.Repo,
			Token:   cfg.Forge.Token.Value(),
			BaseURL: cfg.Forge.BaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create forge client: %w", err)
		}
	}

	runner := validation.NewRunner(&validation.Config{
		Dir:            cfg.Repo.Path,
		RequiredTools:  cfg.Validation.RequiredTools,
		RequiredFiles:  cfg.Validation.RequiredFiles,
		CommandTimeout: cfg.Validation.CommandTimeout.Duration(),
	}, logger)

	return &deps{
		cfg:    cfg,
		logger: logger,
		git:    git,
		forge:  forgeClient,
		runner: runner,
	}, nil
}

// newService wires the orchestrator from loaded deps.
func (d *deps) newService() (patch.Service, error) {
	return patch.NewService(&patch.Config{
		Strategy: &patch.StrategyConfig{
			Prefix:            d.cfg.Branch.Prefix,
			ProtectedPatterns: d.cfg.Branch.Protected,
			TopicPatterns:     d.cfg.Branch.TopicPatterns,
			DisableTimestamps: d.cfg.Branch.DisableTimestamps,
		},
		DefaultBaseBranch: d.cfg.Branch.DefaultBase,
	}, d.git, d.forge, d.runner, d.logger)
}
