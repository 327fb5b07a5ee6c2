package healthcheck

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-trace-query/internal/config"
)

func find(t *testing.T, r *HealthCheckResult, name string) CheckStatus {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no check named %q", name)
	return CheckStatus{}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	return cfg
}

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestCheckDefaults(t *testing.T) {
	cfg := testConfig(t)

	result, err := Check(context.Background(), cfg, "")
	require.NoError(t, err)

	assert.Equal(t, StatusOK, find(t, result, "config").Status)
	assert.Equal(t, StatusOK, find(t, result, "cache").Status)
	assert.DirExists(t, cfg.CacheDir)
	assert.Equal(t, StatusOK, find(t, result, "c grammar").Status)
	assert.Equal(t, "", result.EffectiveScope)
	assert.True(t, result.OK())

	entries, err := os.ReadDir(cfg.CacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch file should be removed")
}

func TestCheckInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinTripCount = 1

	result, err := Check(context.Background(), cfg, "")
	require.NoError(t, err)
	assert.Equal(t, StatusFail, find(t, result, "config").Status)
	assert.Contains(t, find(t, result, "config").Detail, "min_trip_count")
	assert.False(t, result.OK())
}

func TestCheckCacheDir(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.CacheDir = filepath.Join(blocker, "cache")

	assert.Equal(t, StatusFail, checkCacheDir(cfg).Status)

	cfg.CacheEnabled = false
	s := checkCacheDir(cfg)
	assert.Equal(t, StatusOK, s.Status)
	assert.Equal(t, "disabled", s.Detail)
}

func TestCheckMissingGoIsWarning(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	result, err := Check(context.Background(), testConfig(t), "")
	require.NoError(t, err)
	assert.Equal(t, StatusWarn, find(t, result, "go toolchain").Status)
	assert.True(t, result.OK())
}

func TestScopeFromPath(t *testing.T) {
	assert.Equal(t, "", scopeFromPath(""))
	assert.Equal(t, "project", scopeFromPath(config.ProjectConfigFilePath()))
	assert.Equal(t, "global", scopeFromPath(config.GlobalConfigFilePath()))
}
