// Package coordinator drives a full proof cycle: execute the benchmark,
// materialize and hash the artifact set, persist it, and submit the
// receipt to the ledger.
//
// Failure handling is deliberately asymmetric. Storage is best-effort:
// when every upload attempt fails the cycle degrades to a deterministic
// fallback locator and continues, because the on-ledger hashes prove
// content integrity no matter where the bytes live. The ledger is
// authoritative: submission errors are returned untouched and the task
// stays PENDING. Losing the first-writer race to another operator is a
// benign outcome, not an error.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/anxbt/InfraProof/pkg/artifact"
	"github.com/anxbt/InfraProof/pkg/bench"
	"github.com/anxbt/InfraProof/pkg/digest"
	"github.com/anxbt/InfraProof/pkg/ledger"
	"github.com/anxbt/InfraProof/pkg/storage"
)

const tracerName = "infraproof"

// Config configures a coordinator.
type Config struct {
	// WorkDir is the root under which per-run artifact directories are
	// created (<workdir>/<taskID>/<runID>). Empty uses the OS temp dir.
	WorkDir string

	// Operator identifies this operator in receipt documents and logs.
	Operator string

	// Uploader tunes artifact persistence.
	Uploader storage.UploaderConfig
}

// Outcome classifies how a proof cycle ended.
type Outcome string

const (
	// OutcomeSubmitted means this operator's receipt was recorded.
	OutcomeSubmitted Outcome = "submitted"

	// OutcomeLostRace means another operator's receipt finalized first.
	OutcomeLostRace Outcome = "lost-race"
)

// Summary reports everything a completed proof cycle produced.
type Summary struct {
	TaskID uint64 `json:"taskId"`
	RunID  string `json:"runId"`

	Outcome Outcome `json:"outcome"`

	ArtifactHash digest.Digest `json:"artifactHash"`
	ResultHash   digest.Digest `json:"resultHash"`
	ArtifactURL  string        `json:"artifactUrl"`

	// StorageDegraded is set when every upload attempt failed and the
	// cycle continued under the fallback locator.
	StorageDegraded bool `json:"storageDegraded"`

	// ArtifactDir is the local directory holding the materialized set.
	ArtifactDir string   `json:"artifactDir"`
	Files       []string `json:"files"`

	// Tx is the receipt submission reference. Zero when the race was
	// lost.
	Tx ledger.TxRef `json:"tx"`

	// WinningReceipt is the finalized receipt when Outcome is
	// lost-race, if it could be fetched.
	WinningReceipt *ledger.Receipt `json:"winningReceipt,omitempty"`

	Result *bench.Result `json:"result"`
}

// Coordinator runs proof cycles against one ledger client and one
// artifact store, both fixed at construction.
type Coordinator struct {
	ledger ledger.Client
	store  storage.Store
	cfg    Config
	logger *zap.Logger
	tracer trace.Tracer
	hasher *artifact.Hasher
	now    func() time.Time
}

// New creates a coordinator.
func New(client ledger.Client, store storage.Store, cfg Config, logger *zap.Logger) (*Coordinator, error) {
	if client == nil {
		return nil, errors.New("coordinator: ledger client is required")
	}
	if store == nil {
		return nil, errors.New("coordinator: store is required")
	}
	if strings.TrimSpace(cfg.Operator) == "" {
		return nil, errors.New("coordinator: operator identity is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		ledger: client,
		store:  store,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		hasher: artifact.NewHasher(),
		now:    time.Now,
	}, nil
}

// Run executes one proof cycle for the given task.
//
// A benchmark phase error aborts the cycle with nothing produced. A
// storage failure degrades the locator but never aborts. A ledger
// conflict is reported as a lost race on the summary. Any other ledger
// error is returned exactly as the client produced it.
func (c *Coordinator) Run(ctx context.Context, taskID uint64, benchCfg bench.Config) (*Summary, error) {
	runID := uuid.NewString()
	scope := path.Join(strconv.FormatUint(taskID, 10), runID)

	ctx, span := c.tracer.Start(ctx, "proof.cycle", trace.WithAttributes(
		attribute.Int64("task.id", int64(taskID)),
		attribute.String("run.id", runID),
	))
	defer span.End()

	logger := c.logger.With(zap.Uint64("taskId", taskID), zap.String("runId", runID))
	logger.Info("proof cycle starting", zap.String("operator", c.cfg.Operator))

	result, rec, err := c.execute(ctx, benchCfg, logger)
	if err != nil {
		return nil, c.fail(span, err)
	}

	dir := filepath.Join(c.cfg.WorkDir, filepath.FromSlash(scope))
	files, artifactHash, resultHash, err := c.materializeAndHash(ctx, dir, result, rec.Lines())
	if err != nil {
		return nil, c.fail(span, err)
	}
	logger.Info("artifact set hashed",
		zap.String("artifactHash", artifactHash.String()),
		zap.String("resultHash", resultHash.String()),
		zap.Strings("files", files))

	locator, degraded := c.upload(ctx, scope, dir, files, artifactHash, logger)

	receiptDoc := artifact.Receipt{
		TaskID:       taskID,
		ArtifactHash: artifactHash,
		ResultHash:   resultHash,
		ArtifactURL:  locator,
		CreatedAt:    c.now().UTC(),
		Operator:     c.cfg.Operator,
	}
	if err := artifact.WriteReceipt(dir, receiptDoc); err != nil {
		// Local bookkeeping only; the hashes and locator are already
		// fixed, so the cycle continues to submission.
		logger.Warn("receipt document write failed", zap.Error(err))
	} else if !degraded {
		c.uploadReceipt(ctx, scope, dir, logger)
	}

	tx, winning, outcome, err := c.submit(ctx, taskID, artifactHash, resultHash, logger)
	if err != nil {
		return nil, c.fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return &Summary{
		TaskID:          taskID,
		RunID:           runID,
		Outcome:         outcome,
		ArtifactHash:    artifactHash,
		ResultHash:      resultHash,
		ArtifactURL:     locator,
		StorageDegraded: degraded,
		ArtifactDir:     dir,
		Files:           append(files, artifact.ReceiptName),
		Tx:              tx,
		WinningReceipt:  winning,
		Result:          result,
	}, nil
}

// execute runs the benchmark under its own span.
func (c *Coordinator) execute(ctx context.Context, cfg bench.Config, logger *zap.Logger) (*bench.Result, *bench.Recorder, error) {
	ctx, span := c.tracer.Start(ctx, "proof.execute")
	defer span.End()

	runner, err := bench.New(cfg, logger)
	if err != nil {
		return nil, nil, c.fail(span, err)
	}
	result, rec, err := runner.Run(ctx)
	if err != nil {
		return nil, nil, c.fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	return result, rec, nil
}

// materializeAndHash writes the artifact set and computes both digests.
func (c *Coordinator) materializeAndHash(ctx context.Context, dir string, result *bench.Result, lines []string) ([]string, digest.Digest, digest.Digest, error) {
	_, span := c.tracer.Start(ctx, "proof.hash")
	defer span.End()

	var zero digest.Digest

	files, err := artifact.Materialize(dir, result, lines)
	if err != nil {
		return nil, zero, zero, c.fail(span, fmt.Errorf("materialize artifacts: %w", err))
	}

	artifactHash, _, err := c.hasher.HashSet(dir)
	if err != nil {
		return nil, zero, zero, c.fail(span, fmt.Errorf("hash artifact set: %w", err))
	}
	resultHash, err := artifact.HashResult(dir)
	if err != nil {
		return nil, zero, zero, c.fail(span, fmt.Errorf("hash result document: %w", err))
	}

	span.SetAttributes(
		attribute.String("artifact.hash", artifactHash.String()),
		attribute.String("result.hash", resultHash.String()),
	)
	span.SetStatus(codes.Ok, "")
	return files, artifactHash, resultHash, nil
}

// upload pushes the artifact set and returns the set locator. On
// failure it returns the deterministic fallback locator and true.
func (c *Coordinator) upload(ctx context.Context, scope, dir string, names []string, artifactHash digest.Digest, logger *zap.Logger) (string, bool) {
	ctx, span := c.tracer.Start(ctx, "proof.upload")
	defer span.End()

	objects, err := loadObjects(dir, names)
	if err == nil {
		uploader := storage.NewUploader(c.store, c.cfg.Uploader, logger)
		var res *storage.UploadResult
		res, err = uploader.Upload(ctx, scope, objects)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			logger.Info("artifacts uploaded",
				zap.String("url", res.Locator),
				zap.String("backend", c.store.Backend().String()))
			return res.Locator, false
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("upload.degraded")
	logger.Warn("artifact upload failed, continuing with fallback locator", zap.Error(err))
	return storage.FallbackLocator(artifactHash), true
}

// uploadReceipt pushes the receipt document next to the uploaded set.
// Failure only costs the remote copy; the hashes and locator are
// already durable.
func (c *Coordinator) uploadReceipt(ctx context.Context, scope, dir string, logger *zap.Logger) {
	data, err := os.ReadFile(filepath.Join(dir, artifact.ReceiptName))
	if err == nil {
		_, err = c.store.Put(ctx, storage.Object{
			Name:        path.Join(scope, artifact.ReceiptName),
			Data:        data,
			ContentType: "application/json",
			Visibility:  storage.VisibilityPublic,
		})
	}
	if err != nil {
		logger.Warn("receipt document upload failed", zap.Error(err))
	}
}

// submit records the receipt on the ledger.
func (c *Coordinator) submit(ctx context.Context, taskID uint64, artifactHash, resultHash digest.Digest, logger *zap.Logger) (ledger.TxRef, *ledger.Receipt, Outcome, error) {
	ctx, span := c.tracer.Start(ctx, "proof.submit")
	defer span.End()

	tx, err := c.ledger.SubmitReceipt(ctx, taskID, artifactHash, resultHash)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		logger.Info("receipt submitted", zap.String("txId", tx.ID), zap.Uint64("txSeq", tx.Seq))
		return tx, nil, OutcomeSubmitted, nil
	}

	if ledger.IsConflict(err) {
		span.AddEvent("receipt.lost-race")
		span.SetStatus(codes.Ok, "")

		var winning *ledger.Receipt
		if rec, ok, gerr := c.ledger.GetReceipt(ctx, taskID); gerr == nil && ok {
			winning = &rec
			logger.Info("receipt race lost",
				zap.String("winningOperator", rec.Operator),
				zap.String("winningArtifactHash", rec.ArtifactHash.String()))
		} else {
			logger.Info("receipt race lost")
		}
		return ledger.TxRef{}, winning, OutcomeLostRace, nil
	}

	// Anything else is fatal and propagates exactly as the ledger
	// client produced it.
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return ledger.TxRef{}, nil, "", err
}

// fail records err on the span and passes it through.
func (c *Coordinator) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// loadObjects reads the materialized files back as storage objects.
func loadObjects(dir string, names []string) ([]storage.Object, error) {
	objects := make([]storage.Object, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", name, err)
		}
		objects = append(objects, storage.Object{
			Name:        name,
			Data:        data,
			ContentType: contentTypeFor(name),
			Visibility:  storage.VisibilityPublic,
		})
	}
	return objects, nil
}

// contentTypeFor maps artifact filenames to MIME types.
func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".json":
		return "application/json"
	case ".log", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
