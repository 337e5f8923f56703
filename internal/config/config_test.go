package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
)

func chdirToRepoRoot(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
	require.NoError(t, os.Chdir(filepath.Join(wd, "..", "..")))
}

func TestLoadDefault(t *testing.T) {
	chdirToRepoRoot(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "swarmweave", cfg.Cluster.Name)
	require.Equal(t, 4, cfg.Cluster.ShardCount)
	require.Equal(t, "adaptive", cfg.Coordinator.Strategy.Name)
	require.Equal(t, 30*time.Second, cfg.Coordinator.StageDeadlineDuration())
}

func TestLoadEnvOverlayMerges(t *testing.T) {
	chdirToRepoRoot(t)

	require.NoError(t, os.WriteFile(
		filepath.Join("config", "testenv.yaml"),
		[]byte("coordinator:\n  strategy:\n    name: fail_fast\n"),
		0o600,
	))
	t.Cleanup(func() { _ = os.Remove(filepath.Join("config", "testenv.yaml")) })

	cfg, err := Load("testenv")
	require.NoError(t, err)
	require.Equal(t, "fail_fast", cfg.Coordinator.Strategy.Name)
	// Unrelated defaults survive the merge.
	require.Equal(t, "swarmweave", cfg.Cluster.Name)
}

func TestLoadMissingEnvOverlayErrors(t *testing.T) {
	chdirToRepoRoot(t)

	_, err := Load("does-not-exist")
	require.Error(t, err)
}

func TestDiscoveryConfigDefaultsWhenUnset(t *testing.T) {
	d := DiscoveryConfig{}
	require.Equal(t, cluster.DefaultAnnouncementTTL, d.TTLDuration())
	require.Equal(t, cluster.DefaultRefreshInterval, d.RefreshDuration())
}

func TestParseDurationOrFallsBackOnGarbage(t *testing.T) {
	require.Equal(t, 7*time.Second, parseDurationOr("not-a-duration", 7*time.Second))
	require.Equal(t, 3*time.Second, parseDurationOr("3s", 7*time.Second))
}
