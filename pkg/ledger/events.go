package ledger

import (
	"time"

	"github.com/anxbt/InfraProof/pkg/digest"
)

// EventKind identifies a registry event type.
type EventKind string

const (
	// EventTaskCreated is emitted when a task is recorded.
	EventTaskCreated EventKind = "TaskCreated"

	// EventReceiptSubmitted is emitted when a receipt is recorded.
	EventReceiptSubmitted EventKind = "ReceiptSubmitted"
)

// Event is one entry in the registry's ordered event log. Seq is
// assigned by the registry and strictly increases; kind-specific
// fields are nil or empty on other kinds.
type Event struct {
	Seq    uint64    `json:"seq"`
	Kind   EventKind `json:"kind"`
	TaskID uint64    `json:"taskId"`

	// TaskCreated fields.
	Requester string         `json:"requester,omitempty"`
	SpecHash  *digest.Digest `json:"specHash,omitempty"`

	// ReceiptSubmitted fields.
	Operator     string         `json:"operator,omitempty"`
	ArtifactHash *digest.Digest `json:"artifactHash,omitempty"`
	ResultHash   *digest.Digest `json:"resultHash,omitempty"`

	EmittedAt time.Time `json:"emittedAt"`
}
