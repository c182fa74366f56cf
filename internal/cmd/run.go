package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anxbt/InfraProof/internal/config"
	"github.com/anxbt/InfraProof/internal/observability"
	"github.com/anxbt/InfraProof/pkg/bench"
	"github.com/anxbt/InfraProof/pkg/coordinator"
	"github.com/anxbt/InfraProof/pkg/ledger"
	"github.com/anxbt/InfraProof/pkg/storage"
	"github.com/anxbt/InfraProof/pkg/storage/local"
	"github.com/anxbt/InfraProof/pkg/storage/s3"
	"github.com/anxbt/InfraProof/pkg/taskspec"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a full proof cycle for a task",
	Long: `Execute one proof cycle: run the hardware benchmark, materialize and
hash the canonical artifact set, upload it, and submit the receipt.

The registry accepts exactly one receipt per task. When another
operator's receipt finalizes first the cycle reports lost-race and
exits cleanly; losing is a normal outcome, not a failure.

With --spec the manifest is hashed and checked against the task's
recorded spec hash before executing, and its dimensions replace the
configured benchmark dimensions.

Examples:
  infraproof run --task 0
  infraproof run --task 0 --spec task.yaml
  infraproof run --task 0 --json`,
	Args: cobra.NoArgs,
	RunE: runProofCycle,
}

var (
	runTask uint64
	runSpec string
	runJSON bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Uint64Var(&runTask, "task", 0, "Task id to execute")
	runCmd.Flags().StringVarP(&runSpec, "spec", "s", "", "Task spec manifest to check and execute against")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Output the cycle summary as JSON")
	_ = runCmd.MarkFlagRequired("task")
}

func runProofCycle(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.GetConfig()

	benchCfg := bench.Config{
		CPUDurationMs: cfg.Bench.CPUDurationMs,
		MemorySizeMB:  cfg.Bench.MemorySizeMB,
		DiskSizeMB:    cfg.Bench.DiskSizeMB,
		ScratchDir:    cfg.Bench.ScratchDir,
	}

	client, err := openRegistry(ctx)
	if err != nil {
		observability.CLILogger.Error("Failed to open registry", zap.Error(err))
		return exitError(exitServiceUnavailable, "Failed to open registry", err)
	}
	defer func() { _ = client.Close() }()

	task, err := client.GetTask(ctx, runTask)
	if err != nil {
		if ledger.IsNotFound(err) {
			return exitError(exitNotFound, fmt.Sprintf("Task %d not found", runTask), err)
		}
		return exitError(exitServiceUnavailable, "Failed to read task", err)
	}

	if runSpec != "" {
		spec, err := taskspec.Load(runSpec)
		if err != nil {
			return exitError(exitDataError, "Invalid task spec", err)
		}
		specHash, err := taskspec.Hash(spec)
		if err != nil {
			return exitError(exitDataError, "Invalid task spec", err)
		}
		if specHash != task.SpecHash {
			return exitError(exitDataError,
				fmt.Sprintf("Spec manifest hash %s does not match the task's recorded hash %s", specHash, task.SpecHash), nil)
		}
		benchCfg.CPUDurationMs = spec.Config.CPUDurationMs
		benchCfg.MemorySizeMB = spec.Config.MemorySizeMB
		benchCfg.DiskSizeMB = spec.Config.DiskSizeMB
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to open artifact store", zap.Error(err))
		return exitError(exitServiceUnavailable, "Failed to open artifact store", err)
	}
	defer func() { _ = store.Close() }()

	coord, err := coordinator.New(client, store, coordinator.Config{
		WorkDir:  cfg.Coordinator.WorkDir,
		Operator: cfg.Coordinator.Operator,
		Uploader: storage.UploaderConfig{
			Concurrency:       cfg.Uploader.Concurrency,
			MaxAttempts:       cfg.Uploader.MaxAttempts,
			RequestsPerSecond: cfg.Uploader.RequestsPerSecond,
		},
	}, observability.CLILogger)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid coordinator configuration", err)
	}

	summary, err := coord.Run(ctx, runTask, benchCfg)
	if err != nil {
		observability.CLILogger.Error("Proof cycle failed", zap.Error(err))
		return exitError(exitSoftware, "Proof cycle failed", err)
	}

	if runJSON {
		return printJSON(cmd, summary)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Proof cycle %s\n", summary.Outcome)
	fmt.Fprintf(w, "  taskId:       %d\n", summary.TaskID)
	fmt.Fprintf(w, "  runId:        %s\n", summary.RunID)
	fmt.Fprintf(w, "  artifactHash: %s\n", summary.ArtifactHash)
	fmt.Fprintf(w, "  resultHash:   %s\n", summary.ResultHash)
	fmt.Fprintf(w, "  artifact:     %s\n", summary.ArtifactURL)
	if summary.StorageDegraded {
		fmt.Fprintf(w, "  storage:      degraded (uploads failed, fallback locator recorded)\n")
	}
	switch summary.Outcome {
	case coordinator.OutcomeSubmitted:
		fmt.Fprintf(w, "  tx:           %s (seq %d)\n", summary.Tx.ID, summary.Tx.Seq)
	case coordinator.OutcomeLostRace:
		if summary.WinningReceipt != nil {
			fmt.Fprintf(w, "  winner:       %s (artifactHash %s)\n",
				summary.WinningReceipt.Operator, summary.WinningReceipt.ArtifactHash)
		}
	}
	if r := summary.Result; r != nil {
		fmt.Fprintf(w, "  bench:        %s iterations, %s to disk, %dms total\n",
			humanize.Comma(int64(r.CPU.Iterations)), humanize.IBytes(uint64(r.Disk.BytesWritten)), r.TotalDurationMs)
	}
	return nil
}

// openStore builds the artifact store from configuration: S3 when a
// bucket is set, the local filesystem store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Bucket != "" {
		return s3.New(ctx, s3.Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			Profile:         cfg.Storage.Profile,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			ForcePathStyle:  cfg.Storage.ForcePathStyle,
			KeyPrefix:       cfg.Storage.KeyPrefix,
		})
	}
	return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
}
