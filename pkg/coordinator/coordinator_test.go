package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anxbt/InfraProof/pkg/artifact"
	"github.com/anxbt/InfraProof/pkg/bench"
	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
	"github.com/anxbt/InfraProof/pkg/ledger/embedded"
	"github.com/anxbt/InfraProof/pkg/storage"
	"github.com/anxbt/InfraProof/pkg/storage/local"
)

// failingStore refuses every Put so the degraded path can be exercised.
type failingStore struct{}

func (failingStore) Put(context.Context, storage.Object) (string, error) {
	return "", &storage.StorageError{Op: "Put", Backend: "fake", Err: storage.ErrUnavailable}
}
func (failingStore) Locator(name string) string { return "fake://" + name }
func (failingStore) Backend() storage.Backend   { return "fake" }
func (failingStore) Close() error               { return nil }

func openRegistry(t *testing.T, identity string) *embedded.Registry {
	t.Helper()
	reg, err := embedded.Open(context.Background(), embedded.Config{Path: ":memory:", Identity: identity})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func openLocalStore(t *testing.T) (*local.Store, string) {
	t.Helper()
	base := t.TempDir()
	store, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, base
}

func quickBench(t *testing.T) bench.Config {
	t.Helper()
	return bench.Config{
		CPUDurationMs: 20,
		MemorySizeMB:  1,
		DiskSizeMB:    1,
		ScratchDir:    t.TempDir(),
	}
}

func newCoordinator(t *testing.T, client ledger.Client, store storage.Store) *Coordinator {
	t.Helper()
	coord, err := New(client, store, Config{
		WorkDir:  t.TempDir(),
		Operator: "operator-a",
		Uploader: storage.UploaderConfig{MaxAttempts: 2, InitialInterval: time.Millisecond},
	}, nil)
	require.NoError(t, err)
	return coord
}

func TestNewValidation(t *testing.T) {
	reg := openRegistry(t, "operator-a")
	store, _ := openLocalStore(t)

	_, err := New(nil, store, Config{Operator: "op"}, nil)
	require.Error(t, err)

	_, err = New(reg, nil, Config{Operator: "op"}, nil)
	require.Error(t, err)

	_, err = New(reg, store, Config{Operator: "  "}, nil)
	require.Error(t, err)
}

func TestRunSubmitsReceipt(t *testing.T) {
	ctx := context.Background()
	reg := openRegistry(t, "operator-a")
	store, base := openLocalStore(t)
	coord := newCoordinator(t, reg, store)

	specHash := digest.Sum([]byte("spec"))
	taskID, _, err := reg.CreateTask(ctx, specHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), taskID)

	status, err := reg.TaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, status)

	summary, err := coord.Run(ctx, taskID, quickBench(t))
	require.NoError(t, err)

	assert.Equal(t, taskID, summary.TaskID)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, OutcomeSubmitted, summary.Outcome)
	assert.False(t, summary.ArtifactHash.IsZero())
	assert.False(t, summary.ResultHash.IsZero())
	assert.False(t, summary.StorageDegraded)
	assert.NotEmpty(t, summary.Tx.ID)
	assert.Nil(t, summary.WinningReceipt)
	require.NotNil(t, summary.Result)
	assert.Equal(t, []string{
		artifact.ExecutionLogName,
		artifact.MetricsName,
		artifact.ResultName,
		artifact.ReceiptName,
	}, summary.Files)

	// The task is now completed with exactly this receipt.
	status, err = reg.TaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, status)

	rec, ok, err := reg.GetReceipt(ctx, taskID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary.ArtifactHash, rec.ArtifactHash)
	assert.Equal(t, summary.ResultHash, rec.ResultHash)
	assert.Equal(t, "operator-a", rec.Operator)

	// All four documents exist locally and the receipt points at the
	// uploaded set.
	for _, name := range summary.Files {
		_, err := os.Stat(filepath.Join(summary.ArtifactDir, name))
		assert.NoError(t, err, name)
	}
	doc, err := artifact.ReadReceipt(filepath.Join(summary.ArtifactDir, artifact.ReceiptName))
	require.NoError(t, err)
	assert.Equal(t, summary.ArtifactHash, doc.ArtifactHash)
	assert.Equal(t, summary.ArtifactURL, doc.ArtifactURL)
	assert.Equal(t, "operator-a", doc.Operator)

	// The uploaded copy, receipt document included, landed under the
	// store's base dir for this run.
	uploaded := filepath.Join(base, "0", summary.RunID)
	assert.Equal(t, "file://"+filepath.ToSlash(uploaded), summary.ArtifactURL)
	for _, name := range summary.Files {
		_, err := os.Stat(filepath.Join(uploaded, name))
		assert.NoError(t, err, name)
	}
}

func TestRunStorageFailureDegradesToFallback(t *testing.T) {
	ctx := context.Background()
	reg := openRegistry(t, "operator-a")
	coord := newCoordinator(t, reg, failingStore{})

	taskID, _, err := reg.CreateTask(ctx, digest.Sum([]byte("spec")))
	require.NoError(t, err)

	summary, err := coord.Run(ctx, taskID, quickBench(t))
	require.NoError(t, err)

	assert.True(t, summary.StorageDegraded)
	assert.Equal(t, storage.FallbackLocator(summary.ArtifactHash), summary.ArtifactURL)
	assert.Equal(t, OutcomeSubmitted, summary.Outcome)

	// Degraded storage never blocks the ledger record.
	status, err := reg.TaskStatus(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, status)

	// The local receipt document carries the fallback locator.
	doc, err := artifact.ReadReceipt(filepath.Join(summary.ArtifactDir, artifact.ReceiptName))
	require.NoError(t, err)
	assert.Equal(t, summary.ArtifactURL, doc.ArtifactURL)
}

func TestRunLostRaceIsBenign(t *testing.T) {
	ctx := context.Background()
	reg := openRegistry(t, "operator-a")
	store, _ := openLocalStore(t)
	coord := newCoordinator(t, reg, store)

	taskID, _, err := reg.CreateTask(ctx, digest.Sum([]byte("spec")))
	require.NoError(t, err)

	// Another operator's receipt finalizes first.
	winningArtifact := digest.Sum([]byte("winning artifacts"))
	winningResult := digest.Sum([]byte("winning result"))
	_, err = reg.SubmitReceipt(ctx, taskID, winningArtifact, winningResult)
	require.NoError(t, err)

	summary, err := coord.Run(ctx, taskID, quickBench(t))
	require.NoError(t, err)

	assert.Equal(t, OutcomeLostRace, summary.Outcome)
	assert.Empty(t, summary.Tx.ID)
	require.NotNil(t, summary.WinningReceipt)
	assert.Equal(t, winningArtifact, summary.WinningReceipt.ArtifactHash)
	assert.NotEqual(t, summary.ArtifactHash, summary.WinningReceipt.ArtifactHash)

	// The stored receipt is untouched by the losing run.
	rec, ok, err := reg.GetReceipt(ctx, taskID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, winningArtifact, rec.ArtifactHash)
	assert.Equal(t, winningResult, rec.ResultHash)
}

func TestRunUnknownTaskIsFatal(t *testing.T) {
	ctx := context.Background()
	reg := openRegistry(t, "operator-a")
	store, _ := openLocalStore(t)
	coord := newCoordinator(t, reg, store)

	summary, err := coord.Run(ctx, 99, quickBench(t))
	require.Error(t, err)
	assert.Nil(t, summary)

	// The ledger error surfaces exactly as the client produced it.
	assert.True(t, ledger.IsNotFound(err))
	var revert *ledger.RevertError
	require.ErrorAs(t, err, &revert)
	assert.Equal(t, ledger.RevertTaskNotFound, revert.Message)
}

func TestRunBenchFailureAborts(t *testing.T) {
	reg := openRegistry(t, "operator-a")
	store, _ := openLocalStore(t)

	workDir := t.TempDir()
	coord, err := New(reg, store, Config{WorkDir: workDir, Operator: "operator-a"}, nil)
	require.NoError(t, err)

	taskID, _, err := reg.CreateTask(context.Background(), digest.Sum([]byte("spec")))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := coord.Run(ctx, taskID, quickBench(t))
	require.Error(t, err)
	assert.Nil(t, summary)

	var phaseErr *bench.PhaseError
	require.ErrorAs(t, err, &phaseErr)

	// Nothing was materialized and the task is still open.
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	status, err := reg.TaskStatus(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, status)
}
