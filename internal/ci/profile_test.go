package ci

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteCloudProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Host:        "cloud.getdbt.com",
		ProjectID:   "12345",
		ProjectName: "jaffle_shop",
		TokenName:   "ci-token",
		TokenValue:  "secret",
	}

	path, err := writeCloudProfile(cfg, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".dbt", "dbt_cloud.yml"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var profile cloudProfile
	require.NoError(t, yaml.Unmarshal(raw, &profile))
	assert.Equal(t, 1, profile.Version)
	assert.Equal(t, "12345", profile.Context.ActiveProject)
	assert.Equal(t, "cloud.getdbt.com", profile.Context.ActiveHost)
	require.Len(t, profile.Projects, 1)
	assert.Equal(t, "jaffle_shop", profile.Projects[0].ProjectName)
	assert.Equal(t, "ci-token", profile.Projects[0].TokenName)
	assert.Equal(t, "secret", profile.Projects[0].TokenValue)
}

func TestWriteCloudProfileOverwrites(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Host: "cloud.getdbt.com", ProjectID: "1"}

	_, err := writeCloudProfile(cfg, dir)
	require.NoError(t, err)

	cfg.ProjectID = "2"
	path, err := writeCloudProfile(cfg, dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var profile cloudProfile
	require.NoError(t, yaml.Unmarshal(raw, &profile))
	assert.Equal(t, "2", profile.Context.ActiveProject)
}
