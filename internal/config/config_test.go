// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envPGHost, envPGPort, envPGDatabase, envPGUser, envPGPassword, envBuildRoot, envPython, envTileserver, envSecret} {
		require.NoError(t, os.Unsetenv(k))
	}
}

func setBaseEnv(t *testing.T, buildRoot string) {
	t.Helper()
	t.Setenv(envPGHost, "localhost")
	t.Setenv(envPGDatabase, "opensite")
	t.Setenv(envPGUser, "opensite")
	t.Setenv(envPGPassword, "secret")
	t.Setenv(envBuildRoot, buildRoot)
}

func TestLoadDefaultsPort(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	setBaseEnv(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5432", cfg.PGPort)
}

func TestLoadMissingRequiredFails(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadGeneratesAndPersistsSecret(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	setBaseEnv(t, dir)

	cfg1, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, cfg1.ServerSecret)

	cfg2, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg1.ServerSecret, cfg2.ServerSecret)

	data, err := os.ReadFile(filepath.Join(dir, secretFileRelPath))
	require.NoError(t, err)
	assert.Equal(t, cfg1.ServerSecret, string(data))
}

func TestEnsureDirectoriesCreatesAll(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	setBaseEnv(t, dir)
	cfg, err := Load()
	require.NoError(t, err)

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range cfg.Directories() {
		info, statErr := os.Stat(d)
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
}
