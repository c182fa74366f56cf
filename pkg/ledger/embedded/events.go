package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

// eventPayload is the kind-specific body persisted in the event log.
type eventPayload struct {
	TaskID       uint64         `json:"taskId"`
	Requester    string         `json:"requester,omitempty"`
	SpecHash     *digest.Digest `json:"specHash,omitempty"`
	Operator     string         `json:"operator,omitempty"`
	ArtifactHash *digest.Digest `json:"artifactHash,omitempty"`
	ResultHash   *digest.Digest `json:"resultHash,omitempty"`
}

func emitEvent(ctx context.Context, tx *sql.Tx, kind ledger.EventKind, payload eventPayload, at time.Time) (uint64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal %s payload: %w", kind, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (kind, task_id, payload, emitted_at) VALUES (?, ?, ?, ?)`,
		string(kind), payload.TaskID, string(body), at.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("append %s event: %w", kind, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	return uint64(seq), nil
}

// Events returns events with Seq greater than since, in sequence
// order. A non-positive limit returns everything.
func (r *Registry) Events(ctx context.Context, since uint64, limit int) ([]ledger.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as no cap.
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, kind, task_id, payload, emitted_at FROM events WHERE seq > ? ORDER BY seq LIMIT ?`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ledger.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *Registry) eventBySeq(ctx context.Context, seq uint64) (ledger.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT seq, kind, task_id, payload, emitted_at FROM events WHERE seq = ?`, seq)
	return scanEvent(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (ledger.Event, error) {
	var (
		seq       uint64
		kind      string
		taskID    uint64
		payload   string
		emittedAt string
	)
	if err := row.Scan(&seq, &kind, &taskID, &payload, &emittedAt); err != nil {
		return ledger.Event{}, fmt.Errorf("scan event: %w", err)
	}

	var p eventPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ledger.Event{}, fmt.Errorf("decode event %d payload: %w", seq, err)
	}
	at, err := time.Parse(time.RFC3339Nano, emittedAt)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("event %d emitted at: %w", seq, err)
	}

	return ledger.Event{
		Seq:          seq,
		Kind:         ledger.EventKind(kind),
		TaskID:       taskID,
		Requester:    p.Requester,
		SpecHash:     p.SpecHash,
		Operator:     p.Operator,
		ArtifactHash: p.ArtifactHash,
		ResultHash:   p.ResultHash,
		EmittedAt:    at,
	}, nil
}
