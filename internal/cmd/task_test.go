package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anxbt/InfraProof/pkg/ledger"
	"github.com/anxbt/InfraProof/pkg/taskspec"
)

const testManifest = `type: hardware_benchmark
duration: 30
config:
  cpuDurationMs: 50
  memorySizeMB: 1
  diskSizeMB: 1
createdAt: 2026-01-02T03:04:05Z
`

func tmpRegistry(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "registry.db")
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTaskCreateAndShow(t *testing.T) {
	db := tmpRegistry(t)

	out, err := execRoot(t, "--registry", db, "task", "create", "--json")
	require.NoError(t, err)

	var created taskCreateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, uint64(0), created.TaskID)
	assert.False(t, created.SpecHash.IsZero())
	assert.Equal(t, uint64(1), created.Tx.Seq)

	out, err = execRoot(t, "--registry", db, "task", "show", "0", "--json")
	require.NoError(t, err)

	var shown taskShowOutput
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, uint64(0), shown.Task.ID)
	assert.Equal(t, created.SpecHash, shown.Task.SpecHash)
	assert.Equal(t, ledger.StatusPending, shown.Status)
	assert.Nil(t, shown.Receipt)

	// Task ids are assigned sequentially.
	out, err = execRoot(t, "--registry", db, "task", "create", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, uint64(1), created.TaskID)
}

func TestTaskCreateDeterministicHash(t *testing.T) {
	db := tmpRegistry(t)
	manifest := writeManifest(t, testManifest)

	var first, second taskCreateOutput

	out, err := execRoot(t, "--registry", db, "task", "create", "--spec", manifest, "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &first))

	out, err = execRoot(t, "--registry", db, "task", "create", "--spec", manifest, "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &second))

	// Same manifest, same canonical bytes, same hash; only the task id
	// advances.
	assert.Equal(t, first.SpecHash, second.SpecHash)
	assert.Equal(t, first.TaskID+1, second.TaskID)
}

func TestTaskCreatePrintSpec(t *testing.T) {
	manifest := writeManifest(t, testManifest)

	out, err := execRoot(t, "task", "create", "--spec", manifest, "--print-spec")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, taskspec.TypeHardwareBenchmark, doc["type"])

	// The canonical form matches what the hash is computed over.
	spec, err := taskspec.Load(manifest)
	require.NoError(t, err)
	canonical, err := taskspec.CanonicalJSON(spec)
	require.NoError(t, err)
	assert.JSONEq(t, string(canonical), out)
}

func TestTaskCreateRejectsUnstampedManifest(t *testing.T) {
	db := tmpRegistry(t)
	manifest := writeManifest(t, "type: hardware_benchmark\nduration: 30\n")

	_, err := execRoot(t, "--registry", db, "task", "create", "--spec", manifest, "--json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "createdAt")
}

func TestTaskShowNotFound(t *testing.T) {
	db := tmpRegistry(t)

	_, err := execRoot(t, "--registry", db, "task", "show", "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Task 42 not found")

	var ec *exitCodeError
	require.ErrorAs(t, err, &ec)
	assert.Equal(t, exitNotFound, ec.code)
}

func TestTaskShowInvalidID(t *testing.T) {
	db := tmpRegistry(t)

	_, err := execRoot(t, "--registry", db, "task", "show", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Invalid task id "abc"`)
}
