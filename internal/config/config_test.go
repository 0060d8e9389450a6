package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAssignEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"ASSIGN_DATA_DIR", "PORT", "LOG_LEVEL", "LOG_PRETTY", "DEV_MODE",
		"REMOTE_SOLVER_URL", "USE_REMOTE_FOR_LARGE", "ALWAYS_USE_REMOTE",
		"ROUTE_TO_REMOTE_ACCOUNT_CEILING", "IN_PROCESS_VAR_CEILING",
		"REMOTE_SOLVER_TIMEOUT_SECONDS", "DEFAULT_CRE_VARIANCE_PERCENT",
		"DEFAULT_ATR_VARIANCE_PERCENT", "S3_BACKUP_BUCKET",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_DefaultsWhenEnvUnset(t *testing.T) {
	clearAssignEnv(t)
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "data"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 3000, cfg.Solver.RouteToRemoteAccountCeiling)
	assert.Equal(t, 30000, cfg.Solver.InProcessVarCeiling)
	assert.Empty(t, cfg.Solver.RemoteURL)
	assert.Empty(t, cfg.Backup.Bucket)
	assert.True(t, filepath.IsAbs(cfg.DataDir))

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearAssignEnv(t)
	dir := t.TempDir()

	t.Setenv("PORT", "9090")
	t.Setenv("REMOTE_SOLVER_URL", "https://solver.example.com/solve")
	t.Setenv("ALWAYS_USE_REMOTE", "true")
	t.Setenv("ROUTE_TO_REMOTE_ACCOUNT_CEILING", "500")

	cfg, err := Load(filepath.Join(dir, "data"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://solver.example.com/solve", cfg.Solver.RemoteURL)
	assert.True(t, cfg.Solver.AlwaysUseRemote)
	assert.Equal(t, 500, cfg.Solver.RouteToRemoteAccountCeiling)
}

func TestValidate_AlwaysRemoteRequiresURL(t *testing.T) {
	cfg := &Config{Solver: SolverConfig{AlwaysUseRemote: true, RemoteURL: ""}}
	assert.Error(t, cfg.Validate())

	cfg.Solver.RemoteURL = "https://solver.example.com"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CLIOverrideTakesPriorityOverEnv(t *testing.T) {
	clearAssignEnv(t)
	dir := t.TempDir()
	t.Setenv("ASSIGN_DATA_DIR", filepath.Join(dir, "env-dir"))

	cliDir := filepath.Join(dir, "cli-dir")
	cfg, err := Load(cliDir)
	require.NoError(t, err)

	assert.Equal(t, cliDir, cfg.DataDir)
}
