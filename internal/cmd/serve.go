package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anxbt/InfraProof/internal/config"
	"github.com/anxbt/InfraProof/internal/observability"
	"github.com/anxbt/InfraProof/internal/server"
	"github.com/anxbt/InfraProof/internal/server/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status server",
	Long: `Start the HTTP status server.

The server exposes task state, the event log, health, and version as
JSON. It never writes to the registry; task creation and receipt
submission stay with the CLI.

Examples:
  infraproof serve
  infraproof serve --host 0.0.0.0 --port 9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", -1, "Bind port (overrides config; 0 picks an ephemeral port)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig()

	host := cfg.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Server.Port
	if servePort >= 0 {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openRegistry(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to open registry", zap.Error(err))
		return exitError(exitServiceUnavailable, "Failed to open registry", err)
	}
	defer func() { _ = client.Close() }()

	srv := server.New(server.Config{
		Host:            host,
		Port:            port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Version: handlers.VersionInfo{
			Version:   versionInfo.Version,
			Commit:    versionInfo.Commit,
			BuildDate: versionInfo.BuildDate,
		},
		Ledger: client,
		Logger: observability.CLILogger,
	})

	if err := srv.Start(ctx); err != nil {
		observability.CLILogger.Error("Status server failed", zap.Error(err))
		return exitError(exitServiceUnavailable, "Status server failed", err)
	}
	return nil
}
