package storage

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Defaults for uploader behavior.
const (
	// DefaultConcurrency is the number of objects in flight at once.
	DefaultConcurrency = 3

	// DefaultMaxAttempts is the total tries per object, first attempt
	// included.
	DefaultMaxAttempts = 4
)

// UploaderConfig tunes how an artifact set is pushed to a store.
type UploaderConfig struct {
	// Concurrency caps the number of concurrent Put calls.
	// Zero uses DefaultConcurrency.
	Concurrency int

	// MaxAttempts is the total tries per object, first attempt included.
	// Zero uses DefaultMaxAttempts.
	MaxAttempts int

	// RequestsPerSecond paces Put attempts across the whole set.
	// Zero disables pacing.
	RequestsPerSecond float64

	// InitialInterval seeds the exponential backoff between retries.
	// Zero uses the backoff package default.
	InitialInterval time.Duration
}

// Uploader pushes artifact sets to a Store with bounded concurrency and
// per-object retry.
type Uploader struct {
	store   Store
	cfg     UploaderConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewUploader creates an uploader over the given store.
func NewUploader(store Store, cfg UploaderConfig, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Uploader{
		store:   store,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}
}

// UploadResult describes a persisted artifact set.
type UploadResult struct {
	// Locator is the common locator of the set.
	Locator string

	// Files maps object names to their individual locators.
	Files map[string]string
}

// Upload persists every object under the given scope prefix and returns
// the set locator. A failed object fails the whole upload; objects
// already in flight are cancelled through the group context.
func (u *Uploader) Upload(ctx context.Context, scope string, objects []Object) (*UploadResult, error) {
	if len(objects) == 0 {
		return nil, fmt.Errorf("upload: no objects for scope %q", scope)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.cfg.Concurrency)

	locators := make([]string, len(objects))
	for i, obj := range objects {
		scoped := obj
		scoped.Name = path.Join(scope, obj.Name)
		g.Go(func() error {
			locator, err := u.putWithRetry(gctx, scoped)
			if err != nil {
				return err
			}
			locators[i] = locator
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	files := make(map[string]string, len(objects))
	for i, obj := range objects {
		files[obj.Name] = locators[i]
	}

	return &UploadResult{
		Locator: u.store.Locator(scope),
		Files:   files,
	}, nil
}

// putWithRetry runs a single Put under the retry policy. Sealed and
// permission failures are permanent; everything else is retried with
// exponential backoff until the attempt budget runs out.
func (u *Uploader) putWithRetry(ctx context.Context, obj Object) (string, error) {
	policy := backoff.NewExponentialBackOff()
	if u.cfg.InitialInterval > 0 {
		policy.InitialInterval = u.cfg.InitialInterval
	}
	// Attempts bound the loop, not elapsed time.
	policy.MaxElapsedTime = 0

	var locator string
	operation := func() error {
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		loc, err := u.store.Put(ctx, obj)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			u.logger.Warn("artifact upload attempt failed",
				zap.String("object", obj.Name),
				zap.Error(err))
			return err
		}
		locator = loc
		return nil
	}

	retries := uint64(u.cfg.MaxAttempts - 1)
	if err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.WithContext(policy, ctx), retries)); err != nil {
		return "", err
	}
	return locator, nil
}

// retryable reports whether a Put failure is worth another attempt.
// A sealed object or denied access never heals on retry.
func retryable(err error) bool {
	if IsSealed(err) || IsAccessDenied(err) {
		return false
	}
	return true
}
