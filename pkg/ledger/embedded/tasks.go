package embedded

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

const (
	opCreateTask = "createTask"
	opGetTask    = "getTask"
	opTaskStatus = "taskStatus"
)

// CreateTask records a new task bound to specHash and emits the
// TaskCreated event. The assigned id is read back from the finalized
// event, never trusted before commit.
func (r *Registry) CreateTask(ctx context.Context, specHash digest.Digest) (uint64, ledger.TxRef, error) {
	if specHash.IsZero() {
		return 0, ledger.TxRef{}, ledger.NewRevert(opCreateTask, ledger.RevertSpecHashZero, ledger.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, ledger.TxRef{}, fmt.Errorf("begin createTask tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Ids are monotonic from 0 and never reused; tasks are never
	// deleted, so MAX+1 cannot resurrect an id.
	var next uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(task_id)+1, 0) FROM tasks`).Scan(&next); err != nil {
		return 0, ledger.TxRef{}, fmt.Errorf("assign task id: %w", err)
	}

	now := r.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tasks (task_id, requester, spec_hash, created_at) VALUES (?, ?, ?, ?)`,
		next, r.identity, specHash.String(), now.Format(time.RFC3339Nano)); err != nil {
		return 0, ledger.TxRef{}, fmt.Errorf("insert task: %w", err)
	}

	seq, err := emitEvent(ctx, tx, ledger.EventTaskCreated, eventPayload{
		TaskID:    next,
		Requester: r.identity,
		SpecHash:  &specHash,
	}, now)
	if err != nil {
		return 0, ledger.TxRef{}, err
	}

	if err := tx.Commit(); err != nil {
		return 0, ledger.TxRef{}, fmt.Errorf("commit createTask: %w", err)
	}

	ev, err := r.eventBySeq(ctx, seq)
	if err != nil {
		return 0, ledger.TxRef{}, fmt.Errorf("read back creation event: %w", err)
	}

	return ev.TaskID, ledger.TxRef{ID: uuid.NewString(), Seq: seq}, nil
}

// GetTask returns the task record for taskID.
func (r *Registry) GetTask(ctx context.Context, taskID uint64) (ledger.Task, error) {
	var (
		requester string
		specHash  string
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT requester, spec_hash, created_at FROM tasks WHERE task_id = ?`, taskID).
		Scan(&requester, &specHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Task{}, ledger.NewRevert(opGetTask, ledger.RevertTaskNotFound, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Task{}, fmt.Errorf("query task %d: %w", taskID, err)
	}

	hash, err := digest.Parse(specHash)
	if err != nil {
		return ledger.Task{}, fmt.Errorf("task %d spec hash: %w", taskID, err)
	}
	at, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return ledger.Task{}, fmt.Errorf("task %d created at: %w", taskID, err)
	}

	return ledger.Task{
		ID:        taskID,
		Requester: requester,
		SpecHash:  hash,
		CreatedAt: at,
	}, nil
}

// TaskStatus derives the lifecycle view: PENDING until a receipt is
// recorded, COMPLETED after.
func (r *Registry) TaskStatus(ctx context.Context, taskID uint64) (ledger.TaskStatus, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE task_id = ?)`, taskID).Scan(&exists); err != nil {
		return "", fmt.Errorf("query task %d: %w", taskID, err)
	}
	if !exists {
		return "", ledger.NewRevert(opTaskStatus, ledger.RevertTaskNotFound, ledger.ErrNotFound)
	}

	var receipted bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM receipts WHERE task_id = ?)`, taskID).Scan(&receipted); err != nil {
		return "", fmt.Errorf("query receipt %d: %w", taskID, err)
	}
	if receipted {
		return ledger.StatusCompleted, nil
	}
	return ledger.StatusPending, nil
}
