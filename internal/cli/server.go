// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sitegraph/internal/app"
	"sitegraph/internal/server"
)

func newServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the long-running graph-introspection and file-download listener",
		Long:  "Starts an HTTP listener serving /graph (answers 503 from this command, which attaches no build graph) and /files/ (downloadable outputs), gated by the server secret.",
		RunE:  runServer,
	}

	cmd.Flags().Int("port", 8080, "port to listen on")

	return cmd
}

func runServer(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")

	log := loggerFromFlags(cmd)
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	srv := server.New(fmt.Sprintf(":%d", port), cfg.ServerSecret, cfg.OutputDir(), nil, log)
	return srv.ListenAndServe(ctx)
}
