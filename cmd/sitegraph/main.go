// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"sitegraph/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// Centralize exit code handling here rather than letting Cobra
		// print its own usage on top of our error.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
