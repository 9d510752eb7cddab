// SPDX-License-Identifier: AGPL-3.0-or-later

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sitegraph/internal/postgis"
)

// Exercising Registry's SQL-issuing methods needs a live PostGIS
// connection (they call straight through to *pgxpool.Pool), so these
// tests stick to the pure helpers and the fixed table-name wiring.

func TestQuotedWrapsInDoubleQuotes(t *testing.T) {
	assert.Equal(t, `"_opensite_registry"`, quoted(postgis.TableRegistry))
	assert.Equal(t, `"_opensite_branch"`, quoted(postgis.TableBranch))
}

func TestIsNoRows(t *testing.T) {
	assert.False(t, isNoRows(nil))
	assert.True(t, isNoRows(errNoRows{}))
}

type errNoRows struct{}

func (errNoRows) Error() string { return "no rows in result set" }

func TestEntryAndBranchRowZeroValues(t *testing.T) {
	var e Entry
	assert.False(t, e.Completed)
	assert.Empty(t, e.OutputHandle)

	var b BranchRow
	assert.Empty(t, b.ConfigurationHash)
}
