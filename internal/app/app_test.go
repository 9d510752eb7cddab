// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalNameMapResolve(t *testing.T) {
	m := CanonicalNameMap{"Oxon": "Oxfordshire"}
	assert.Equal(t, "Oxfordshire", m.Resolve("Oxon"))
	assert.Equal(t, "Surrey", m.Resolve("Surrey"))
}

func TestDefaultCanonicalNamesResolvesUKAliases(t *testing.T) {
	assert.Equal(t, "England", DefaultCanonicalNames.Resolve("england"))
	assert.Equal(t, "Cymru / Wales", DefaultCanonicalNames.Resolve("wales"))
	assert.Equal(t, "Alba / Scotland", DefaultCanonicalNames.Resolve("Scotland"))
	assert.Equal(t, "Northern Ireland / Tuaisceart Éireann", DefaultCanonicalNames.Resolve("northern-ireland"))
	assert.Equal(t, "Surrey", DefaultCanonicalNames.Resolve("Surrey"))
}

func TestRemoveContentsClearsFilesButKeepsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("y"), 0o644))

	require.NoError(t, removeContents(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemoveContentsMissingDirIsNoop(t *testing.T) {
	err := removeContents(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
}
