// Package ledger defines the boundary to the task registry: the
// append-only authority that records tasks and their execution
// receipts. Consumers talk to a Client and never see registry
// internals; the embedded subpackage provides the local
// implementation.
package ledger

import (
	"context"
	"time"

	"github.com/anxbt/InfraProof/pkg/digest"
)

// TaskStatus is the user-visible view of a task's lifecycle.
type TaskStatus string

const (
	// StatusPending means the task exists and awaits a receipt.
	StatusPending TaskStatus = "PENDING"

	// StatusCompleted means a receipt has been recorded. Terminal.
	StatusCompleted TaskStatus = "COMPLETED"
)

// Task is an execution request recorded on the registry. Immutable
// after creation.
type Task struct {
	// ID is assigned by the registry: monotonically increasing from 0,
	// never reused.
	ID uint64 `json:"id"`

	// Requester is the identity that created the task.
	Requester string `json:"requester"`

	// SpecHash binds the task to its specification document.
	SpecHash digest.Digest `json:"specHash"`

	// CreatedAt is the registry-side creation time.
	CreatedAt time.Time `json:"createdAt"`
}

// Receipt is the proof-of-execution record for a task. At most one
// receipt exists per task; the first valid submission wins and is
// immutable.
type Receipt struct {
	TaskID       uint64        `json:"taskId"`
	Operator     string        `json:"operator"`
	ArtifactHash digest.Digest `json:"artifactHash"`
	ResultHash   digest.Digest `json:"resultHash"`
	CompletedAt  time.Time     `json:"completedAt"`
}

// TxRef identifies a finalized registry transaction. Seq is the event
// sequence at commit; in the embedded registry finality is immediate,
// so a returned TxRef always refers to durable state.
type TxRef struct {
	ID  string `json:"id"`
	Seq uint64 `json:"seq"`
}

// Client is the registry boundary used by requesters, operators, and
// the read-only status surfaces.
type Client interface {
	// CreateTask records a new task bound to specHash and returns the
	// registry-assigned task id, recovered from the finalized
	// TaskCreated event. A zero specHash fails validation.
	CreateTask(ctx context.Context, specHash digest.Digest) (uint64, TxRef, error)

	// GetTask returns the task record, or a not-found revert.
	GetTask(ctx context.Context, taskID uint64) (Task, error)

	// GetReceipt returns the receipt for a task. Absence is not an
	// error: ok is false when the task is still pending.
	GetReceipt(ctx context.Context, taskID uint64) (Receipt, bool, error)

	// SubmitReceipt records the execution receipt for a task. The
	// registry rejects unknown tasks, duplicate receipts, and zero
	// hashes; only the first valid submission is recorded.
	SubmitReceipt(ctx context.Context, taskID uint64, artifactHash, resultHash digest.Digest) (TxRef, error)

	// TaskStatus derives the lifecycle view for a task.
	TaskStatus(ctx context.Context, taskID uint64) (TaskStatus, error)

	// Events returns registry events with Seq greater than since, in
	// sequence order, up to limit entries. A non-positive limit means
	// no cap.
	Events(ctx context.Context, since uint64, limit int) ([]Event, error)

	// Close releases the client's resources.
	Close() error
}
