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
	opSubmitReceipt = "submitReceipt"
	opGetReceipt    = "getReceipt"
)

// SubmitReceipt records the execution receipt for taskID. Checks run
// in the contract's fixed order: task existence, duplicate receipt,
// then hash validation. Only the first valid submission is recorded.
func (r *Registry) SubmitReceipt(ctx context.Context, taskID uint64, artifactHash, resultHash digest.Digest) (ledger.TxRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.TxRef{}, fmt.Errorf("begin submitReceipt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE task_id = ?)`, taskID).Scan(&exists); err != nil {
		return ledger.TxRef{}, fmt.Errorf("query task %d: %w", taskID, err)
	}
	if !exists {
		return ledger.TxRef{}, ledger.NewRevert(opSubmitReceipt, ledger.RevertTaskNotFound, ledger.ErrNotFound)
	}

	var receipted bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM receipts WHERE task_id = ?)`, taskID).Scan(&receipted); err != nil {
		return ledger.TxRef{}, fmt.Errorf("query receipt %d: %w", taskID, err)
	}
	if receipted {
		return ledger.TxRef{}, ledger.NewRevert(opSubmitReceipt, ledger.RevertReceiptExists, ledger.ErrConflict)
	}

	if artifactHash.IsZero() {
		return ledger.TxRef{}, ledger.NewRevert(opSubmitReceipt, ledger.RevertArtifactHashZero, ledger.ErrValidation)
	}
	if resultHash.IsZero() {
		return ledger.TxRef{}, ledger.NewRevert(opSubmitReceipt, ledger.RevertResultHashZero, ledger.ErrValidation)
	}

	now := r.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO receipts (task_id, operator, artifact_hash, result_hash, completed_at) VALUES (?, ?, ?, ?, ?)`,
		taskID, r.identity, artifactHash.String(), resultHash.String(), now.Format(time.RFC3339Nano)); err != nil {
		// A racing writer from another process can land between the
		// existence check and the insert; the primary key settles it.
		if isUniqueViolation(err) {
			return ledger.TxRef{}, ledger.NewRevert(opSubmitReceipt, ledger.RevertReceiptExists, ledger.ErrConflict)
		}
		return ledger.TxRef{}, fmt.Errorf("insert receipt: %w", err)
	}

	seq, err := emitEvent(ctx, tx, ledger.EventReceiptSubmitted, eventPayload{
		TaskID:       taskID,
		Operator:     r.identity,
		ArtifactHash: &artifactHash,
		ResultHash:   &resultHash,
	}, now)
	if err != nil {
		return ledger.TxRef{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.TxRef{}, fmt.Errorf("commit submitReceipt: %w", err)
	}

	return ledger.TxRef{ID: uuid.NewString(), Seq: seq}, nil
}

// GetReceipt returns the receipt for taskID. A pending task yields
// ok=false with no error; an unknown task is a not-found revert.
func (r *Registry) GetReceipt(ctx context.Context, taskID uint64) (ledger.Receipt, bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasks WHERE task_id = ?)`, taskID).Scan(&exists); err != nil {
		return ledger.Receipt{}, false, fmt.Errorf("query task %d: %w", taskID, err)
	}
	if !exists {
		return ledger.Receipt{}, false, ledger.NewRevert(opGetReceipt, ledger.RevertTaskNotFound, ledger.ErrNotFound)
	}

	var (
		operator     string
		artifactHash string
		resultHash   string
		completedAt  string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT operator, artifact_hash, result_hash, completed_at FROM receipts WHERE task_id = ?`, taskID).
		Scan(&operator, &artifactHash, &resultHash, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Receipt{}, false, nil
	}
	if err != nil {
		return ledger.Receipt{}, false, fmt.Errorf("query receipt %d: %w", taskID, err)
	}

	aHash, err := digest.Parse(artifactHash)
	if err != nil {
		return ledger.Receipt{}, false, fmt.Errorf("receipt %d artifact hash: %w", taskID, err)
	}
	rHash, err := digest.Parse(resultHash)
	if err != nil {
		return ledger.Receipt{}, false, fmt.Errorf("receipt %d result hash: %w", taskID, err)
	}
	at, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return ledger.Receipt{}, false, fmt.Errorf("receipt %d completed at: %w", taskID, err)
	}

	return ledger.Receipt{
		TaskID:       taskID,
		Operator:     operator,
		ArtifactHash: aHash,
		ResultHash:   rHash,
		CompletedAt:  at,
	}, true, nil
}
