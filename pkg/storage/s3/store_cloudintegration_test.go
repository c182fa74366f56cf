//go:build cloudintegration

package s3_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anxbt/InfraProof/pkg/storage"
	"github.com/anxbt/InfraProof/pkg/storage/s3"
	"github.com/anxbt/InfraProof/test/cloudtest"
)

func newTestStore(t *testing.T, ctx context.Context, bucket string) *s3.Store {
	t.Helper()

	store, err := s3.New(ctx, s3.Config{
		Bucket:          bucket,
		Endpoint:        cloudtest.Endpoint,
		Region:          cloudtest.Region,
		AccessKeyID:     cloudtest.TestAccessKeyID,
		SecretAccessKey: cloudtest.TestSecretAccessKey,
		ForcePathStyle:  true,
		KeyPrefix:       "artifacts",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Put_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	t.Run("uploads object and returns locator", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		store := newTestStore(t, ctx, bucket)

		content := []byte(`{"checksum":711680}`)
		locator, err := store.Put(ctx, storage.Object{
			Name:        "7/result.json",
			Data:        content,
			ContentType: "application/json",
			Visibility:  storage.VisibilityPublic,
		})
		require.NoError(t, err)
		assert.Equal(t, cloudtest.Endpoint+"/"+bucket+"/artifacts/7/result.json", locator)

		stored := cloudtest.GetObject(t, ctx, bucket, "artifacts/7/result.json")
		assert.Equal(t, content, stored)

		head := cloudtest.HeadObject(t, ctx, bucket, "artifacts/7/result.json")
		assert.Equal(t, "application/json", *head.ContentType)
		assert.Equal(t, "public", head.Metadata["visibility"])
	})

	t.Run("second put to same name is sealed", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		store := newTestStore(t, ctx, bucket)

		first := []byte("first")
		_, err := store.Put(ctx, storage.Object{Name: "7/execution.log", Data: first})
		require.NoError(t, err)

		_, err = store.Put(ctx, storage.Object{Name: "7/execution.log", Data: []byte("second")})
		require.Error(t, err)
		assert.True(t, storage.IsSealed(err))

		// Original bytes are untouched.
		stored := cloudtest.GetObject(t, ctx, bucket, "artifacts/7/execution.log")
		assert.Equal(t, first, stored)
	})

	t.Run("put to missing bucket fails", func(t *testing.T) {
		store := newTestStore(t, ctx, "nonexistent-bucket-12345")

		_, err := store.Put(ctx, storage.Object{Name: "7/result.json", Data: []byte("x")})
		require.Error(t, err)
		assert.False(t, storage.IsSealed(err))
	})
}

func TestUploader_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	store := newTestStore(t, ctx, bucket)
	uploader := storage.NewUploader(store, storage.UploaderConfig{}, nil)

	result, err := uploader.Upload(ctx, "3", []storage.Object{
		{Name: "execution.log", Data: []byte("log"), ContentType: "text/plain", Visibility: storage.VisibilityPublic},
		{Name: "metrics.json", Data: []byte("{}"), ContentType: "application/json", Visibility: storage.VisibilityPublic},
		{Name: "result.json", Data: []byte("{}"), ContentType: "application/json", Visibility: storage.VisibilityPublic},
	})
	require.NoError(t, err)

	assert.Equal(t, cloudtest.Endpoint+"/"+bucket+"/artifacts/3", result.Locator)
	require.Len(t, result.Files, 3)

	for _, name := range []string{"execution.log", "metrics.json", "result.json"} {
		data := cloudtest.GetObject(t, ctx, bucket, "artifacts/3/"+name)
		assert.NotEmpty(t, data)
	}
}
