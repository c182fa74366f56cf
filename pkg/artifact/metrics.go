package artifact

import (
	"time"

	"github.com/anxbt/InfraProof/pkg/bench"
)

// Metrics is the summary projection written as metrics.json. It lets
// a reader judge a run without downloading the full result document.
type Metrics struct {
	TotalDurationMs int64            `json:"totalDurationMs"`
	Timestamp       time.Time        `json:"timestamp"`
	SystemInfo      bench.SystemInfo `json:"systemInfo"`
	Summary         MetricsSummary   `json:"summary"`
}

// MetricsSummary holds the headline throughput numbers.
type MetricsSummary struct {
	CPUOpsPerSecond float64 `json:"cpuOpsPerSecond"`
	MemoryWriteMBps float64 `json:"memoryWriteMBps"`
	MemoryReadMBps  float64 `json:"memoryReadMBps"`
	DiskWriteMBps   float64 `json:"diskWriteMBps"`
	DiskReadMBps    float64 `json:"diskReadMBps"`
}

func buildMetrics(result *bench.Result) Metrics {
	return Metrics{
		TotalDurationMs: result.TotalDurationMs,
		Timestamp:       result.Timestamp,
		SystemInfo:      result.SystemInfo,
		Summary: MetricsSummary{
			CPUOpsPerSecond: result.CPU.OpsPerSecond,
			MemoryWriteMBps: result.Memory.WriteMBps,
			MemoryReadMBps:  result.Memory.ReadMBps,
			DiskWriteMBps:   result.Disk.WriteMBps,
			DiskReadMBps:    result.Disk.ReadMBps,
		},
	}
}
