package ci

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// cloudProfile is the ~/.dbt/dbt_cloud.yml structure the dbt Cloud CLI
// reads for authentication.
type cloudProfile struct {
	Version  int              `yaml:"version"`
	Context  profileContext   `yaml:"context"`
	Projects []profileProject `yaml:"projects"`
}

type profileContext struct {
	ActiveProject string `yaml:"active-project"`
	ActiveHost    string `yaml:"active-host"`
}

type profileProject struct {
	ProjectName string `yaml:"project-name"`
	ProjectID   string `yaml:"project-id"`
	AccountHost string `yaml:"account-host"`
	TokenName   string `yaml:"token-name"`
	TokenValue  string `yaml:"token-value"`
}

// writeCloudProfile writes the dbt Cloud authentication profile to
// baseDir/.dbt/dbt_cloud.yml. An empty baseDir means the home directory.
func writeCloudProfile(cfg Config, baseDir string) (string, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		baseDir = home
	}

	profile := cloudProfile{
		Version: 1,
		Context: profileContext{
			ActiveProject: cfg.ProjectID,
			ActiveHost:    cfg.Host,
		},
		Projects: []profileProject{
			{
				ProjectName: cfg.ProjectName,
				ProjectID:   cfg.ProjectID,
				AccountHost: cfg.Host,
				TokenName:   cfg.TokenName,
				TokenValue:  cfg.TokenValue,
			},
		},
	}

	dbtDir := filepath.Join(baseDir, ".dbt")
	if err := os.MkdirAll(dbtDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dbtDir, err)
	}

	raw, err := yaml.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}

	path := filepath.Join(dbtDir, "dbt_cloud.yml")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("failed to write profile: %w", err)
	}
	return path, nil
}
