// Package bench runs the three-phase hardware benchmark: CPU trial
// division, sequential memory write/read, and chunked disk write/read.
// Phases run strictly sequentially so measured throughput numbers do
// not contend with one another. Progress lines go to a Recorder, the
// ordered buffer that later becomes the execution log artifact;
// operator logging is separate and never feeds artifacts.
package bench

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Defaults for the standard workload.
const (
	DefaultCPUDurationMs = 5000
	DefaultMemorySizeMB  = 100
	DefaultDiskSizeMB    = 10
)

const bytesPerMiB = 1 << 20

// Config holds the benchmark phase parameters.
type Config struct {
	// CPUDurationMs is the wall-clock budget for the CPU phase.
	CPUDurationMs int

	// MemorySizeMB is the buffer size for the memory phase, in MiB.
	MemorySizeMB int

	// DiskSizeMB is the file size for the disk phase, in MiB.
	DiskSizeMB int

	// ScratchDir is the parent directory under which the disk phase
	// creates its exclusive scratch directory. Empty means the OS
	// temp dir.
	ScratchDir string
}

// DefaultConfig returns the standard workload configuration.
func DefaultConfig() Config {
	return Config{
		CPUDurationMs: DefaultCPUDurationMs,
		MemorySizeMB:  DefaultMemorySizeMB,
		DiskSizeMB:    DefaultDiskSizeMB,
	}
}

// Validate checks the configuration for executable values.
func (c *Config) Validate() error {
	if c.CPUDurationMs < 1 {
		return fmt.Errorf("cpu duration must be >= 1ms, got %d", c.CPUDurationMs)
	}
	if c.MemorySizeMB < 1 {
		return fmt.Errorf("memory size must be >= 1MB, got %d", c.MemorySizeMB)
	}
	if c.DiskSizeMB < 1 {
		return fmt.Errorf("disk size must be >= 1MB, got %d", c.DiskSizeMB)
	}
	return nil
}

// Phase names a benchmark phase.
type Phase string

const (
	PhaseCPU    Phase = "cpu"
	PhaseMemory Phase = "memory"
	PhaseDisk   Phase = "disk"
)

// PhaseError is an execution failure in one phase. Any phase error
// aborts the whole run; no partial result is produced.
type PhaseError struct {
	Phase Phase
	Err   error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Runner executes the benchmark.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Runner with the given configuration.
func New(cfg Config, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, logger: logger}, nil
}

// Run executes the three phases in order and returns the result along
// with the recorded progress lines. On any phase failure both are nil:
// partial runs produce nothing.
func (r *Runner) Run(ctx context.Context) (*Result, *Recorder, error) {
	rec := NewRecorder()
	start := time.Now()

	info := collectSystemInfo()
	rec.Linef("benchmark starting: cpu=%dms memory=%dMB disk=%dMB",
		r.cfg.CPUDurationMs, r.cfg.MemorySizeMB, r.cfg.DiskSizeMB)
	rec.Linef("host %s (%s/%s, %d cpus, %s)",
		info.Hostname, info.OS, info.Arch, info.NumCPU, info.GoVersion)
	r.logger.Info("benchmark starting",
		zap.Int("cpu_duration_ms", r.cfg.CPUDurationMs),
		zap.Int("memory_size_mb", r.cfg.MemorySizeMB),
		zap.Int("disk_size_mb", r.cfg.DiskSizeMB))

	cpu, err := r.runCPUPhase(ctx, rec)
	if err != nil {
		return nil, nil, &PhaseError{Phase: PhaseCPU, Err: err}
	}

	mem, err := r.runMemoryPhase(ctx, rec)
	if err != nil {
		return nil, nil, &PhaseError{Phase: PhaseMemory, Err: err}
	}

	disk, err := r.runDiskPhase(ctx, rec)
	if err != nil {
		return nil, nil, &PhaseError{Phase: PhaseDisk, Err: err}
	}

	total := time.Since(start)
	rec.Linef("benchmark complete in %dms", total.Milliseconds())
	r.logger.Info("benchmark complete", zap.Duration("elapsed", total))

	result := &Result{
		SystemInfo:      info,
		CPU:             cpu,
		Memory:          mem,
		Disk:            disk,
		TotalDurationMs: total.Milliseconds(),
		Timestamp:       time.Now().UTC(),
	}
	return result, rec, nil
}

// mbps converts bytes moved over a duration into MiB per second.
func mbps(bytes int64, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(bytes) / bytesPerMiB / secs
}
