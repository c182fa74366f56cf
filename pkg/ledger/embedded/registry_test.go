package embedded

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

func openTestRegistry(t *testing.T, identity string) *Registry {
	t.Helper()
	reg, err := Open(context.Background(), Config{Path: ":memory:", Identity: identity})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestCreateTaskAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "requester-1")

	specA := digest.Sum([]byte("spec-a"))
	specB := digest.Sum([]byte("spec-b"))

	idA, txA, err := reg.CreateTask(ctx, specA)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), idA)
	assert.NotEmpty(t, txA.ID)
	assert.Positive(t, txA.Seq)

	idB, txB, err := reg.CreateTask(ctx, specB)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idB)
	assert.Greater(t, txB.Seq, txA.Seq)

	task, err := reg.GetTask(ctx, idA)
	require.NoError(t, err)
	assert.Equal(t, idA, task.ID)
	assert.Equal(t, "requester-1", task.Requester)
	assert.Equal(t, specA, task.SpecHash)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestCreateTaskRejectsZeroSpecHash(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "requester-1")

	_, _, err := reg.CreateTask(ctx, digest.Digest{})
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	assert.Contains(t, err.Error(), ledger.RevertSpecHashZero)

	// Nothing was created.
	_, err = reg.GetTask(ctx, 0)
	assert.True(t, ledger.IsNotFound(err))
	events, err := reg.Events(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetTaskUnknown(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "requester-1")

	_, err := reg.GetTask(ctx, 42)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.Contains(t, err.Error(), ledger.RevertTaskNotFound)

	_, err = reg.TaskStatus(ctx, 42)
	assert.True(t, ledger.IsNotFound(err))

	_, _, err = reg.GetReceipt(ctx, 42)
	assert.True(t, ledger.IsNotFound(err))
}

func TestSubmitReceiptUnknownTask(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "operator-1")

	// Task existence is checked before hash validation, so even a zero
	// hash reports not-found here.
	_, err := reg.SubmitReceipt(ctx, 7, digest.Digest{}, digest.Digest{})
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.Contains(t, err.Error(), ledger.RevertTaskNotFound)
}

func TestSubmitReceiptLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "operator-1")

	taskID, _, err := reg.CreateTask(ctx, digest.Sum([]byte("spec")))
	require.NoError(t, err)

	status, err := reg.TaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, status)

	_, ok, err := reg.GetReceipt(ctx, taskID)
	require.NoError(t, err)
	assert.False(t, ok)

	artifactHash := digest.Sum([]byte("artifacts"))
	resultHash := digest.Sum([]byte("result"))

	tx, err := reg.SubmitReceipt(ctx, taskID, artifactHash, resultHash)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)

	status, err = reg.TaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, status)

	receipt, ok, err := reg.GetReceipt(ctx, taskID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, taskID, receipt.TaskID)
	assert.Equal(t, "operator-1", receipt.Operator)
	assert.Equal(t, artifactHash, receipt.ArtifactHash)
	assert.Equal(t, resultHash, receipt.ResultHash)
	assert.False(t, receipt.CompletedAt.IsZero())
}

func TestSubmitReceiptFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	regA, err := Open(ctx, Config{Path: path, Identity: "operator-a"})
	require.NoError(t, err)
	defer func() { _ = regA.Close() }()

	regB, err := Open(ctx, Config{Path: path, Identity: "operator-b"})
	require.NoError(t, err)
	defer func() { _ = regB.Close() }()

	taskID, _, err := regA.CreateTask(ctx, digest.Sum([]byte("spec")))
	require.NoError(t, err)

	winning := digest.Sum([]byte("winning-artifacts"))
	winningResult := digest.Sum([]byte("winning-result"))
	_, err = regA.SubmitReceipt(ctx, taskID, winning, winningResult)
	require.NoError(t, err)

	// A different caller loses the race and the stored receipt is
	// unchanged.
	_, err = regB.SubmitReceipt(ctx, taskID,
		digest.Sum([]byte("losing-artifacts")), digest.Sum([]byte("losing-result")))
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))
	assert.Contains(t, err.Error(), ledger.RevertReceiptExists)

	receipt, ok, err := regB.GetReceipt(ctx, taskID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "operator-a", receipt.Operator)
	assert.Equal(t, winning, receipt.ArtifactHash)
	assert.Equal(t, winningResult, receipt.ResultHash)
}

func TestSubmitReceiptRejectsZeroHashes(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "operator-1")

	taskID, _, err := reg.CreateTask(ctx, digest.Sum([]byte("spec")))
	require.NoError(t, err)

	_, err = reg.SubmitReceipt(ctx, taskID, digest.Digest{}, digest.Sum([]byte("result")))
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	assert.Contains(t, err.Error(), ledger.RevertArtifactHashZero)

	_, err = reg.SubmitReceipt(ctx, taskID, digest.Sum([]byte("artifacts")), digest.Digest{})
	require.Error(t, err)
	assert.True(t, ledger.IsValidation(err))
	assert.Contains(t, err.Error(), ledger.RevertResultHashZero)

	// Both rejections left the task pending.
	status, err := reg.TaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, status)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t, "party-1")

	specA := digest.Sum([]byte("spec-a"))
	specB := digest.Sum([]byte("spec-b"))
	idA, _, err := reg.CreateTask(ctx, specA)
	require.NoError(t, err)
	_, _, err = reg.CreateTask(ctx, specB)
	require.NoError(t, err)

	artifactHash := digest.Sum([]byte("artifacts"))
	resultHash := digest.Sum([]byte("result"))
	_, err = reg.SubmitReceipt(ctx, idA, artifactHash, resultHash)
	require.NoError(t, err)

	events, err := reg.Events(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)

	created := events[0]
	assert.Equal(t, ledger.EventTaskCreated, created.Kind)
	assert.Equal(t, idA, created.TaskID)
	assert.Equal(t, "party-1", created.Requester)
	require.NotNil(t, created.SpecHash)
	assert.Equal(t, specA, *created.SpecHash)
	assert.Nil(t, created.ArtifactHash)

	submitted := events[2]
	assert.Equal(t, ledger.EventReceiptSubmitted, submitted.Kind)
	assert.Equal(t, idA, submitted.TaskID)
	assert.Equal(t, "party-1", submitted.Operator)
	require.NotNil(t, submitted.ArtifactHash)
	assert.Equal(t, artifactHash, *submitted.ArtifactHash)
	require.NotNil(t, submitted.ResultHash)
	assert.Equal(t, resultHash, *submitted.ResultHash)

	// Sequence numbers strictly increase.
	assert.Greater(t, events[1].Seq, events[0].Seq)
	assert.Greater(t, events[2].Seq, events[1].Seq)

	// Windowing.
	tail, err := reg.Events(ctx, events[0].Seq, 0)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, events[1].Seq, tail[0].Seq)

	capped, err := reg.Events(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, events[0].Seq, capped[0].Seq)
}

func TestTaskIDsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	reg, err := Open(ctx, Config{Path: path, Identity: "requester-1"})
	require.NoError(t, err)

	id0, _, err := reg.CreateTask(ctx, digest.Sum([]byte("spec-0")))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id0)
	id1, _, err := reg.CreateTask(ctx, digest.Sum([]byte("spec-1")))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id1)
	require.NoError(t, reg.Close())

	reopened, err := Open(ctx, Config{Path: path, Identity: "requester-1"})
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	id2, _, err := reopened.CreateTask(ctx, digest.Sum([]byte("spec-2")))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id2)
}

func TestOpenRequiresIdentity(t *testing.T) {
	_, err := Open(context.Background(), Config{Path: ":memory:"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity")
}
