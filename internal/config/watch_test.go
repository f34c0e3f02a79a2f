package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestWatchReloadsOnRewrite(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { Set(prev) })

	path := filepath.Join(t.TempDir(), "clubhouse.yaml")
	writeConfigFile(t, path, "club:\n  name: First Hockey Club\n")
	require.NoError(t, Load(path))
	require.Equal(t, "First Hockey Club", Get().Club.Name)

	stop, err := Watch(path)
	require.NoError(t, err)
	defer stop()

	writeConfigFile(t, path, "club:\n  name: Second Hockey Club\n")
	require.Eventually(t, func() bool {
		return Get().Club.Name == "Second Hockey Club"
	}, 5*time.Second, 10*time.Millisecond, "rewriting the watched file should reload the config")
}

func TestWatchKeepsPreviousConfigOnBadRewrite(t *testing.T) {
	prev := Get()
	t.Cleanup(func() { Set(prev) })

	path := filepath.Join(t.TempDir(), "clubhouse.yaml")
	writeConfigFile(t, path, "club:\n  name: First Hockey Club\n")
	require.NoError(t, Load(path))

	stop, err := Watch(path)
	require.NoError(t, err)
	defer stop()

	// out-of-range port fails validation, so the reload is rejected
	writeConfigFile(t, path, "server:\n  port: -1\n")
	require.Never(t, func() bool {
		return Get().Club.Name != "First Hockey Club"
	}, 500*time.Millisecond, 20*time.Millisecond)
	require.Equal(t, 8080, Get().Server.Port)
}

func TestWatchMissingFileFails(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
