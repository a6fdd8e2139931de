package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, "config/policy.yaml", cfg.PolicyFile)
	require.Equal(t, 5*time.Minute, cfg.RoleCacheTTL)
	require.Equal(t, 60, cfg.RateLimitPerMinute)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("ROLE_CACHE_TTL", "30s")
	t.Setenv("POLICY_FILE", "/etc/authority/policy.yaml")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 30*time.Second, cfg.RoleCacheTTL)
	require.Equal(t, "/etc/authority/policy.yaml", cfg.PolicyFile)
}

func TestLoadConfigRejectsNegativeTTL(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("ROLE_CACHE_TTL", "-1s")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestRuntimeTestModeFollowsEnv(t *testing.T) {
	t.Setenv("AUTHORITY_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("AUTHORITY_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}
