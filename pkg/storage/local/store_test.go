package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anxbt/InfraProof/pkg/storage"
)

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{BaseDir: "   "})
	require.Error(t, err)
}

func TestNewCreatesBaseDir(t *testing.T) {
	base := filepath.Join(t.TempDir(), "artifacts")

	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	defer store.Close()

	info, err := os.Stat(base)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPutWritesAndSeals(t *testing.T) {
	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	defer store.Close()

	content := []byte(`{"checksum":711680}`)
	locator, err := store.Put(context.Background(), storage.Object{
		Name:        "7/result.json",
		Data:        content,
		ContentType: "application/json",
		Visibility:  storage.VisibilityPublic,
	})
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(base, "7", "result.json")), locator)

	full := filepath.Join(base, "7", "result.json")
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	info, err := os.Stat(full)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	// Second write to the same name is refused.
	_, err = store.Put(context.Background(), storage.Object{Name: "7/result.json", Data: []byte("other")})
	require.Error(t, err)
	assert.True(t, storage.IsSealed(err))

	data, err = os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestPutContainsTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Put(context.Background(), storage.Object{Name: "../../escape.txt", Data: []byte("x")})
	require.NoError(t, err)

	// The traversal segments are stripped, not honored.
	_, err = os.Stat(filepath.Join(base, "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(base), "escape.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocatorWithoutIO(t *testing.T) {
	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	defer store.Close()

	locator := store.Locator("7")
	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(base, "7")), locator)

	// Nothing was created.
	_, err = os.Stat(filepath.Join(base, "7"))
	assert.True(t, os.IsNotExist(err))
}
