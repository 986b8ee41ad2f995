package commands

import (
	"fmt"
	"os"

	"github.com/leapstack-labs/columnci/internal/ci"
	"github.com/leapstack-labs/columnci/internal/cli/config"
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command, the full CI flow.
func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run column-aware CI for the current pull request",
		Long: `Compile the modified models, compare them against the deferring
environment, resolve the downstream models that are safe to skip, and
trigger the dbt Cloud CI job with those exclusions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := getConfig()
			logger := config.GetLogger(cmd.Context())

			if err := cfg.Validate(); err != nil {
				return err
			}

			orchestrator, err := ci.New(cmd.Context(), ci.Config{
				Host:          cfg.DbtCloudHost,
				ServiceToken:  cfg.DbtCloudServiceToken,
				AccountID:     cfg.DbtCloudAccountID,
				ProjectID:     cfg.DbtCloudProjectID,
				ProjectName:   cfg.DbtCloudProjectName,
				TokenName:     cfg.DbtCloudTokenName,
				TokenValue:    cfg.DbtCloudTokenValue,
				JobID:         cfg.DbtCloudJobID,
				EnvironmentID: cfg.DbtCloudEnvironmentID,
				Dialect:       cfg.Dialect,
				ProjectDir:    cfg.ProjectDir,
				DryRun:        cfg.DryRun,
				GitBranch:     os.Getenv("GITHUB_HEAD_REF"),
				GitRef:        os.Getenv("GITHUB_REF"),
				GithubToken:   cfg.GithubToken,
				Repository:    os.Getenv("GITHUB_REPOSITORY"),
			}, logger)
			if err != nil {
				return err
			}

			if !orchestrator.Run(cmd.Context()) {
				return fmt.Errorf("CI run failed")
			}
			return nil
		},
	}
}

// getConfig returns the current configuration, falling back to defaults
// when none was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Dialect:  config.DefaultDialect,
		LogLevel: config.DefaultLogLevel,
	}
}
