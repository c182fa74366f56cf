// Package cmd implements the infraproof command line interface.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/anxbt/InfraProof/internal/config"
	"github.com/anxbt/InfraProof/internal/observability"
	"github.com/anxbt/InfraProof/internal/telemetry"
	"github.com/anxbt/InfraProof/pkg/ledger/embedded"
)

// Process exit codes, following sysexits conventions.
const (
	exitInvalidArgument    = 2
	exitDataError          = 65
	exitNotFound           = 66
	exitServiceUnavailable = 69
	exitSoftware           = 70
)

// versionInfo holds build metadata injected through SetVersionInfo by
// the main package at startup.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "none",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata. Call before Execute.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "infraproof",
	Short: "Execution proof protocol operator tooling",
	Long: `infraproof manages benchmark tasks in the proof registry, executes
proof cycles, and verifies receipts against local artifact bytes.

A proof cycle runs the hardware benchmark, materializes the canonical
artifact set, hashes it, uploads it, and submits a receipt. The
registry accepts exactly one receipt per task; losing that race is a
normal outcome, not a failure.`,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
}

var (
	rootRegistry    string
	rootLogLevel    string
	rootLogEncoding string
)

// telemetryShutdown flushes the tracer provider when tracing was
// enabled for this invocation. Nil otherwise.
var telemetryShutdown func(context.Context) error

func init() {
	rootCmd.PersistentFlags().StringVar(&rootRegistry, "registry", "", "Registry database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&rootLogEncoding, "log-encoding", "", "Log encoding: console or json")
}

// Execute runs the root command and exits the process with a code
// describing the failure, if any.
func Execute() {
	err := rootCmd.Execute()
	flushRuntime()
	if err == nil {
		return
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		os.Exit(ec.code)
	}
	os.Exit(1)
}

// initRuntime loads configuration and initializes logging and tracing
// before any subcommand runs.
func initRuntime(cmd *cobra.Command, _ []string) error {
	overrides := map[string]any{}
	if rootRegistry != "" {
		overrides["registry"] = map[string]any{"path": rootRegistry}
	}
	logging := map[string]any{}
	if rootLogLevel != "" {
		logging["level"] = rootLogLevel
	}
	if rootLogEncoding != "" {
		logging["encoding"] = rootLogEncoding
	}
	if len(logging) > 0 {
		overrides["logging"] = logging
	}

	cfg, err := config.Load(cmd.Context(), overrides)
	if err != nil {
		return exitError(exitInvalidArgument, "Failed to load configuration", err)
	}

	if err := observability.Init(observability.Config{
		Level:    cfg.Logging.Level,
		Encoding: cfg.Logging.Encoding,
	}); err != nil {
		return exitError(exitInvalidArgument, "Failed to initialize logging", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
			Enabled:        true,
			ServiceName:    "infraproof",
			ServiceVersion: versionInfo.Version,
			OTLPEndpoint:   cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
		})
		if err != nil {
			return exitError(exitServiceUnavailable, "Failed to initialize telemetry", err)
		}
		telemetryShutdown = shutdown
	}
	return nil
}

// flushRuntime stops the tracer provider and flushes buffered logs.
// Runs after every Execute, success or failure.
func flushRuntime() {
	if telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = telemetryShutdown(ctx)
		cancel()
		telemetryShutdown = nil
	}
	observability.Sync()
}

// exitCodeError carries a process exit code through the cobra error
// path so Execute can map failures to distinct shell statuses.
type exitCodeError struct {
	code int
	msg  string
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitCodeError) Unwrap() error { return e.err }

// exitError wraps err with a user-facing message and an exit code.
func exitError(code int, message string, err error) error {
	return &exitCodeError{code: code, msg: message, err: err}
}

// openRegistry opens the embedded registry named by the loaded
// configuration. Callers own the returned handle.
func openRegistry(ctx context.Context) (*embedded.Registry, error) {
	cfg := config.GetConfig()
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return embedded.Open(ctx, embedded.Config{
		Path:     cfg.Registry.Path,
		Identity: cfg.Registry.Identity,
	})
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
