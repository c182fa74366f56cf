package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store with scriptable per-object failures.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    map[string]int
	// pending errors per scoped name, consumed one per attempt
	failures map[string][]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string][]byte),
		puts:     make(map[string]int),
		failures: make(map[string][]error),
	}
}

func (s *fakeStore) failNext(name string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[name] = append(s.failures[name], errs...)
}

func (s *fakeStore) Put(_ context.Context, obj Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.puts[obj.Name]++
	if pending := s.failures[obj.Name]; len(pending) > 0 {
		err := pending[0]
		s.failures[obj.Name] = pending[1:]
		return "", &StorageError{Op: "Put", Backend: "fake", Name: obj.Name, Err: err}
	}
	if _, exists := s.objects[obj.Name]; exists {
		return "", &StorageError{Op: "Put", Backend: "fake", Name: obj.Name, Err: ErrSealed}
	}

	s.objects[obj.Name] = obj.Data
	return s.Locator(obj.Name), nil
}

func (s *fakeStore) Locator(name string) string { return "fake://" + name }
func (s *fakeStore) Backend() Backend           { return "fake" }
func (s *fakeStore) Close() error               { return nil }

func (s *fakeStore) putCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[name]
}

func testObjects() []Object {
	return []Object{
		{Name: "execution.log", Data: []byte("log"), ContentType: "text/plain", Visibility: VisibilityPublic},
		{Name: "metrics.json", Data: []byte("{}"), ContentType: "application/json", Visibility: VisibilityPublic},
		{Name: "result.json", Data: []byte("{}"), ContentType: "application/json", Visibility: VisibilityPublic},
	}
}

func fastUploader(store Store, maxAttempts int) *Uploader {
	return NewUploader(store, UploaderConfig{
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
	}, nil)
}

func TestUploadStoresEveryObject(t *testing.T) {
	store := newFakeStore()
	uploader := fastUploader(store, 1)

	result, err := uploader.Upload(context.Background(), "7", testObjects())
	require.NoError(t, err)

	assert.Equal(t, "fake://7", result.Locator)
	require.Len(t, result.Files, 3)
	assert.Equal(t, "fake://7/execution.log", result.Files["execution.log"])
	assert.Equal(t, "fake://7/metrics.json", result.Files["metrics.json"])
	assert.Equal(t, "fake://7/result.json", result.Files["result.json"])

	assert.Equal(t, []byte("log"), store.objects["7/execution.log"])
	assert.Equal(t, 1, store.putCount("7/result.json"))
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	store := newFakeStore()
	store.failNext("7/metrics.json", ErrUnavailable)
	uploader := fastUploader(store, 3)

	result, err := uploader.Upload(context.Background(), "7", testObjects())
	require.NoError(t, err)

	assert.Equal(t, "fake://7/metrics.json", result.Files["metrics.json"])
	assert.Equal(t, 2, store.putCount("7/metrics.json"))
	assert.Equal(t, 1, store.putCount("7/result.json"))
}

func TestUploadExhaustsAttempts(t *testing.T) {
	store := newFakeStore()
	store.failNext("7/result.json", ErrUnavailable, ErrThrottled, ErrUnavailable)
	uploader := fastUploader(store, 2)

	_, err := uploader.Upload(context.Background(), "7", testObjects())
	require.Error(t, err)
	assert.True(t, IsThrottled(err))
	assert.Equal(t, 2, store.putCount("7/result.json"))
}

func TestUploadSealedIsPermanent(t *testing.T) {
	store := newFakeStore()
	_, err := store.Put(context.Background(), Object{Name: "7/result.json", Data: []byte("first")})
	require.NoError(t, err)

	uploader := fastUploader(store, 4)
	_, err = uploader.Upload(context.Background(), "7", testObjects())
	require.Error(t, err)
	assert.True(t, IsSealed(err))
	// No retries after a sealed response.
	assert.Equal(t, 2, store.putCount("7/result.json"))
}

func TestUploadRejectsEmptySet(t *testing.T) {
	uploader := fastUploader(newFakeStore(), 1)
	_, err := uploader.Upload(context.Background(), "7", nil)
	require.Error(t, err)
}
