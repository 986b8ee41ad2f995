// Package config provides configuration management for the columnci CLI.
//
// Configuration merges four layers, lowest to highest precedence:
// built-in defaults, a columnci.yaml file, environment variables
// (INPUT_* as set by GitHub Actions inputs, or COLUMNCI_*), and CLI
// flags.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config holds all CLI configuration options.
type Config struct {
	DbtCloudHost          string `koanf:"dbt_cloud_host"`
	DbtCloudServiceToken  string `koanf:"dbt_cloud_service_token"`
	DbtCloudAccountID     string `koanf:"dbt_cloud_account_id"`
	DbtCloudJobID         string `koanf:"dbt_cloud_job_id"`
	DbtCloudProjectID     string `koanf:"dbt_cloud_project_id"`
	DbtCloudProjectName   string `koanf:"dbt_cloud_project_name"`
	DbtCloudTokenName     string `koanf:"dbt_cloud_token_name"`
	DbtCloudTokenValue    string `koanf:"dbt_cloud_token_value"`
	DbtCloudEnvironmentID string `koanf:"dbt_cloud_environment_id"`

	Dialect    string `koanf:"dialect"`
	ProjectDir string `koanf:"project_dir"`
	DryRun     bool   `koanf:"dry_run"`
	LogLevel   string `koanf:"log_level"`

	GithubToken string `koanf:"github_token"`
}

// Default configuration values.
const (
	DefaultDialect  = "snowflake"
	DefaultLogLevel = "info"
)

// Validate checks that every field a full CI run requires is set.
// Returns the missing fields phrased as the environment variables that
// would provide them.
func (c *Config) Validate() error {
	required := map[string]string{
		"INPUT_DBT_CLOUD_HOST":          c.DbtCloudHost,
		"INPUT_DBT_CLOUD_SERVICE_TOKEN": c.DbtCloudServiceToken,
		"INPUT_DBT_CLOUD_ACCOUNT_ID":    c.DbtCloudAccountID,
		"INPUT_DBT_CLOUD_JOB_ID":        c.DbtCloudJobID,
		"INPUT_DBT_CLOUD_PROJECT_ID":    c.DbtCloudProjectID,
		"INPUT_DBT_CLOUD_PROJECT_NAME":  c.DbtCloudProjectName,
		"INPUT_DBT_CLOUD_TOKEN_NAME":    c.DbtCloudTokenName,
		"INPUT_DBT_CLOUD_TOKEN_VALUE":   c.DbtCloudTokenValue,
		"INPUT_DIALECT":                 c.Dialect,
	}

	var missing []string
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
