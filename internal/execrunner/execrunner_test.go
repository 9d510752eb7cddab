// SPDX-License-Identifier: AGPL-3.0-or-later

package execrunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegraph/internal/logging"
)

func TestRunSucceeds(t *testing.T) {
	r := New(logging.NewDefault(true))
	res, err := r.Run(context.Background(), Command{Name: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRunNonZeroExit(t *testing.T) {
	r := New(logging.NewDefault(false))
	res, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)
}

func TestRunRespectsContextCancellation(t *testing.T) {
	r := New(logging.NewDefault(false))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx, Command{Name: "sleep", Args: []string{"5"}})
	require.Error(t, err)
}

func TestRunMissingCommand(t *testing.T) {
	r := New(logging.NewDefault(false))
	_, err := r.Run(context.Background(), Command{Name: "definitely-not-a-real-binary-xyz"})
	require.Error(t, err)
}
