// Package storage abstracts artifact persistence behind a minimal
// write-once surface.
//
// Stores expose a single Put operation and nothing else. Artifact
// objects are immutable once written: a second Put to a name that
// already exists fails with ErrSealed instead of overwriting. The
// backend is chosen once at construction time; upload logic never
// branches on the backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/anxbt/InfraProof/pkg/digest"
)

// Backend identifies an artifact storage backend.
type Backend string

const (
	// BackendS3 represents AWS S3 or S3-compatible storage.
	BackendS3 Backend = "s3"

	// BackendLocal represents a local filesystem directory.
	BackendLocal Backend = "local"
)

// String returns the string representation of the backend.
func (b Backend) String() string {
	return string(b)
}

// Visibility declares how an object is meant to be served.
type Visibility string

const (
	// VisibilityPublic marks an object as publicly retrievable. Proof
	// artifacts are public so that anyone holding the on-ledger hashes
	// can fetch and verify the bytes.
	VisibilityPublic Visibility = "public"

	// VisibilityPrivate marks an object as restricted to the operator.
	VisibilityPrivate Visibility = "private"
)

// Object is a single artifact file to persist.
type Object struct {
	// Name is the slash-separated key of the object within the store,
	// e.g. "7/result.json".
	Name string

	// Data is the full object content.
	Data []byte

	// ContentType is the MIME type recorded with the object.
	ContentType string

	// Visibility declares the intended access level.
	Visibility Visibility
}

// Store persists artifact objects.
//
// Implementations should be safe for concurrent use; the uploader puts
// several objects in flight at once.
type Store interface {
	// Put writes a named object and returns its locator. Writing a
	// name that already holds data fails with ErrSealed.
	Put(ctx context.Context, obj Object) (string, error)

	// Locator returns the locator for a name without performing I/O.
	// Passing a prefix (e.g. "7") yields the locator of the whole set.
	Locator(name string) string

	// Backend reports which backend this store writes to.
	Backend() Backend

	// Close releases any resources held by the store.
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrSealed indicates the object name is already written and
	// immutable.
	ErrSealed = errors.New("object already sealed")

	// ErrNotFound indicates the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrBucketNotFound indicates the bucket or base directory does
	// not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrThrottled indicates the request was rate limited by the backend.
	ErrThrottled = errors.New("request throttled")

	// ErrUnavailable indicates the backend is temporarily unavailable.
	ErrUnavailable = errors.New("storage unavailable")
)

// StorageError wraps backend-specific errors with context.
type StorageError struct {
	// Op is the operation that failed (e.g., "Put").
	Op string

	// Backend is the storage backend (e.g., "s3").
	Backend Backend

	// Bucket is the bucket or base directory, if applicable.
	Bucket string

	// Name is the object name, if applicable.
	Name string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Backend, e.Op, e.Bucket, e.Name, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Backend, e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsSealed returns true if the error indicates the object already exists.
func IsSealed(err error) bool {
	return errors.Is(err, ErrSealed)
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsUnavailable returns true if the error indicates the backend is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// FallbackScheme is the locator scheme used when no store accepted the
// artifact set.
const FallbackScheme = "artifact://"

// FallbackLocator returns the deterministic degraded locator for an
// artifact set. The on-ledger hash proves content integrity no matter
// where the bytes are served from, so a cycle whose upload fails can
// still submit a verifiable receipt under this locator.
func FallbackLocator(artifactHash digest.Digest) string {
	return FallbackScheme + artifactHash.Hex()
}
