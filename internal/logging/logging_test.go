// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("should not appear")
	assert.Empty(t, buf.String())

	log.Info("hello", F("node", "railway-lines--england"))
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "railway-lines--england")
}

func TestLoggerVerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug("debug line")
	assert.Contains(t, buf.String(), "debug line")
}

func TestLoggerErrorIncludesErr(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Error("download failed", errors.New("boom"), F("urn", 7))
	out := buf.String()
	assert.True(t, strings.Contains(out, "boom"))
	assert.True(t, strings.Contains(out, "download failed"))
}

func TestWithFieldsIsScoped(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	scoped := log.WithFields(F("global_urn", 42))
	scoped.Info("ready")

	assert.Contains(t, buf.String(), "42")
}
