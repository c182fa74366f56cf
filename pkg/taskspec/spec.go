// Package taskspec defines the task specification document that
// requesters publish and operators execute. The canonical JSON
// serialization of a spec, hashed with SHA-256, is the specHash the
// ledger binds a task to.
package taskspec

import (
	"fmt"
	"strings"
	"time"
)

// TypeHardwareBenchmark is the only workload type currently defined.
const TypeHardwareBenchmark = "hardware_benchmark"

// Defaults applied to unset fields.
const (
	DefaultDurationSeconds = 30
	DefaultCPUDurationMs   = 5000
	DefaultMemorySizeMB    = 100
	DefaultDiskSizeMB      = 10
)

// Spec is the task specification document.
type Spec struct {
	// Type identifies the workload. Only hardware_benchmark is defined.
	Type string `json:"type" yaml:"type"`

	// Duration is the requester's overall time budget in seconds. It is
	// informational; the per-phase budgets in Config govern execution.
	Duration int `json:"duration" yaml:"duration"`

	// Config holds the workload phase parameters.
	Config Config `json:"config" yaml:"config"`

	// CreatedAt is the requester-side creation timestamp. It is part of
	// the hashed document, so two otherwise identical specs created at
	// different times carry different spec hashes.
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

// Config holds the benchmark phase parameters.
type Config struct {
	// CPUDurationMs is the wall-clock budget for the CPU phase.
	CPUDurationMs int `json:"cpuDurationMs" yaml:"cpuDurationMs"`

	// MemorySizeMB is the buffer size for the memory phase, in MiB.
	MemorySizeMB int `json:"memorySizeMB" yaml:"memorySizeMB"`

	// DiskSizeMB is the file size for the disk phase, in MiB.
	DiskSizeMB int `json:"diskSizeMB" yaml:"diskSizeMB"`
}

// SpecError describes a single invalid field.
type SpecError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *SpecError) Error() string {
	return fmt.Sprintf("task spec: %s: %s", e.Field, e.Message)
}

// New returns a spec with all defaults applied and CreatedAt set to
// now in UTC.
func New(now time.Time) *Spec {
	s := &Spec{CreatedAt: now.UTC()}
	s.ApplyDefaults()
	return s
}

// ApplyDefaults fills unset fields with their defaults. CreatedAt is
// left alone; callers stamp it explicitly at creation time.
func (s *Spec) ApplyDefaults() {
	if strings.TrimSpace(s.Type) == "" {
		s.Type = TypeHardwareBenchmark
	}
	if s.Duration == 0 {
		s.Duration = DefaultDurationSeconds
	}
	if s.Config.CPUDurationMs == 0 {
		s.Config.CPUDurationMs = DefaultCPUDurationMs
	}
	if s.Config.MemorySizeMB == 0 {
		s.Config.MemorySizeMB = DefaultMemorySizeMB
	}
	if s.Config.DiskSizeMB == 0 {
		s.Config.DiskSizeMB = DefaultDiskSizeMB
	}
}

// Validate checks the spec is complete and executable.
func (s *Spec) Validate() error {
	if s.Type != TypeHardwareBenchmark {
		return &SpecError{Field: "type", Message: fmt.Sprintf("unsupported workload type %q", s.Type)}
	}
	if s.Duration <= 0 {
		return &SpecError{Field: "duration", Message: "must be positive"}
	}
	if s.Config.CPUDurationMs <= 0 {
		return &SpecError{Field: "config.cpuDurationMs", Message: "must be positive"}
	}
	if s.Config.MemorySizeMB <= 0 {
		return &SpecError{Field: "config.memorySizeMB", Message: "must be positive"}
	}
	if s.Config.DiskSizeMB <= 0 {
		return &SpecError{Field: "config.diskSizeMB", Message: "must be positive"}
	}
	if s.CreatedAt.IsZero() {
		return &SpecError{Field: "createdAt", Message: "must be set before hashing"}
	}
	return nil
}
