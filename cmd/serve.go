package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/mockinterview/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local mock grading backend",
	Long: `Start a mock grading backend that speaks the same protocol as the real one.
Questions come from a fixed bank per topic and feedback is derived from the
size of the uploaded answer, so interviews can be rehearsed offline.

Point the client at it with --backend-url http://localhost:<port>/api.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		srv := server.New(port)
		slog.Info("Mock backend starting", "port", port, "topics", server.Topics())

		// Start server (this blocks)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "8000", "port for the mock backend")
}
