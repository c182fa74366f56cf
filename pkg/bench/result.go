package bench

import (
	"os"
	"runtime"
	"time"
)

// Result is the full benchmark result document. Its canonical JSON
// serialization is the result.json artifact.
type Result struct {
	SystemInfo      SystemInfo   `json:"systemInfo"`
	CPU             CPUResult    `json:"cpu"`
	Memory          MemoryResult `json:"memory"`
	Disk            DiskResult   `json:"disk"`
	TotalDurationMs int64        `json:"totalDurationMs"`
	Timestamp       time.Time    `json:"timestamp"`
}

// CPUResult reports the trial-division phase. Iterations and
// PrimesFound are deterministic for a fixed budget on fixed hardware;
// OpsPerSecond is a measurement.
type CPUResult struct {
	Iterations   uint64  `json:"iterations"`
	PrimesFound  uint64  `json:"primesFound"`
	DurationMs   int64   `json:"durationMs"`
	OpsPerSecond float64 `json:"opsPerSecond"`
}

// MemoryResult reports the buffer write/read phase. Checksum is
// deterministic per buffer size.
type MemoryResult struct {
	SizeMB          int     `json:"sizeMB"`
	WriteMBps       float64 `json:"writeMBps"`
	ReadMBps        float64 `json:"readMBps"`
	Checksum        uint64  `json:"checksum"`
	WriteDurationMs int64   `json:"writeDurationMs"`
	ReadDurationMs  int64   `json:"readDurationMs"`
}

// DiskResult reports the chunked file write/read phase.
type DiskResult struct {
	SizeMB          int     `json:"sizeMB"`
	WriteMBps       float64 `json:"writeMBps"`
	ReadMBps        float64 `json:"readMBps"`
	BytesWritten    int64   `json:"bytesWritten"`
	BytesRead       int64   `json:"bytesRead"`
	WriteDurationMs int64   `json:"writeDurationMs"`
	ReadDurationMs  int64   `json:"readDurationMs"`
}

// SystemInfo describes the host the benchmark ran on.
type SystemInfo struct {
	Hostname  string `json:"hostname"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	NumCPU    int    `json:"numCpu"`
	GoVersion string `json:"goVersion"`
}

func collectSystemInfo() SystemInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return SystemInfo{
		Hostname:  hostname,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		NumCPU:    runtime.NumCPU(),
		GoVersion: runtime.Version(),
	}
}
