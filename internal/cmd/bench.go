package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anxbt/InfraProof/internal/observability"
	"github.com/anxbt/InfraProof/pkg/bench"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the hardware benchmark locally",
	Long: `Run the three-phase hardware benchmark (cpu, memory, disk) without
touching the registry or artifact storage.

This is the operator dry-run: the same workload a proof cycle
executes, printed instead of hashed and submitted.

Examples:
  infraproof bench
  infraproof bench --cpu-ms 1000 --memory-mb 50 --disk-mb 5
  infraproof bench --json`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

var (
	benchCPUMs      int
	benchMemoryMB   int
	benchDiskMB     int
	benchScratchDir string
	benchJSON       bool
)

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVar(&benchCPUMs, "cpu-ms", bench.DefaultCPUDurationMs, "CPU phase duration in milliseconds")
	benchCmd.Flags().IntVar(&benchMemoryMB, "memory-mb", bench.DefaultMemorySizeMB, "Memory phase buffer size in MB")
	benchCmd.Flags().IntVar(&benchDiskMB, "disk-mb", bench.DefaultDiskSizeMB, "Disk phase file size in MB")
	benchCmd.Flags().StringVar(&benchScratchDir, "scratch-dir", "", "Parent directory for the disk phase scratch file")
	benchCmd.Flags().BoolVar(&benchJSON, "json", false, "Output the full result as JSON")
}

func runBench(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	runner, err := bench.New(bench.Config{
		CPUDurationMs: benchCPUMs,
		MemorySizeMB:  benchMemoryMB,
		DiskSizeMB:    benchDiskMB,
		ScratchDir:    benchScratchDir,
	}, observability.CLILogger)
	if err != nil {
		return exitError(exitInvalidArgument, "Invalid benchmark configuration", err)
	}

	result, _, err := runner.Run(ctx)
	if err != nil {
		observability.CLILogger.Error("Benchmark failed", zap.Error(err))
		return exitError(exitSoftware, "Benchmark failed", err)
	}

	if benchJSON {
		return printJSON(cmd, result)
	}

	sys := result.SystemInfo
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Benchmark complete in %dms on %s (%s/%s, %d cpus)\n",
		result.TotalDurationMs, sys.Hostname, sys.OS, sys.Arch, sys.NumCPU)
	fmt.Fprintf(w, "  cpu:    %s iterations, %s primes, %.0f ops/s\n",
		humanize.Comma(int64(result.CPU.Iterations)), humanize.Comma(int64(result.CPU.PrimesFound)), result.CPU.OpsPerSecond)
	fmt.Fprintf(w, "  memory: %s buffer, write %.1f MB/s, read %.1f MB/s\n",
		humanize.IBytes(uint64(result.Memory.SizeMB)<<20), result.Memory.WriteMBps, result.Memory.ReadMBps)
	fmt.Fprintf(w, "  disk:   %s written, write %.1f MB/s, read %.1f MB/s\n",
		humanize.IBytes(uint64(result.Disk.BytesWritten)), result.Disk.WriteMBps, result.Disk.ReadMBps)
	return nil
}
