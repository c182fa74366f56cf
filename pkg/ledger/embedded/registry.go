// Package embedded implements the ledger boundary with a local
// SQLite-backed registry. Finality is immediate: a returned TxRef
// always refers to committed state. The single-writer guarantee on
// receipts is enforced twice, by a process-level mutex and by the
// receipts table's primary key, so first-writer-wins holds even for
// separate processes sharing the database file.
package embedded

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anxbt/InfraProof/pkg/ledger"
)

const driverName = "sqlite"

// Config describes how to open the embedded registry.
type Config struct {
	// Path is a local filesystem path to the registry database, or
	// ":memory:" for an ephemeral registry.
	Path string

	// Identity is recorded as requester on created tasks and as
	// operator on submitted receipts.
	Identity string
}

// Registry is the embedded registry. It implements ledger.Client.
type Registry struct {
	db       *sql.DB
	identity string

	// mu serializes mutations within this process.
	mu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

var _ ledger.Client = (*Registry)(nil)

// Open opens (and creates if needed) a registry database and applies
// the schema.
func Open(ctx context.Context, cfg Config) (*Registry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.Identity) == "" {
		return nil, errors.New("registry identity is required")
	}

	dsn, err := buildDSN(cfg.Path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	if err := configureConn(ctx, db, dsn); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping registry: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Registry{
		db:       db,
		identity: cfg.Identity,
		now:      time.Now,
	}, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

// CheckHealth reports whether the registry database is reachable.
func (r *Registry) CheckHealth(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func buildDSN(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("registry path is required")
	}
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "file:") {
		return path, nil
	}
	if err := ensureRegistryDir(path); err != nil {
		return "", err
	}
	return "file:" + filepath.Clean(path), nil
}

func configureConn(ctx context.Context, db *sql.DB, dsn string) error {
	// One connection always: the registry is single-writer, and a
	// :memory: database exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if !strings.HasPrefix(dsn, "file:") {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func ensureRegistryDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
