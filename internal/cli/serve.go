package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/shikko"
)

func newServeCmd(version string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the shikko server",
		Long: `Run the HTTP and MCP server. Configuration comes from SHIKKO_* environment
variables (a .env file is loaded when present); flags override the
environment. The server runs until SIGINT/SIGTERM, then shuts down
gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []shikko.Option{
				shikko.WithVersion(version),
				shikko.WithLogger(slog.Default()),
			}
			if port != 0 {
				opts = append(opts, shikko.WithPort(port))
			}

			app, err := shikko.New(opts...)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides SHIKKO_PORT)")

	return cmd
}
