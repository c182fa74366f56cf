// Package artifact materializes the canonical artifact set for a
// benchmark run and computes the content hashes the ledger binds.
//
// Directory layout (one run):
//
//	<dir>/execution.log
//	<dir>/metrics.json
//	<dir>/result.json
//	<dir>/receipt.json   (written only after hashing)
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anxbt/InfraProof/pkg/bench"
)

// Canonical artifact file names.
const (
	ExecutionLogName = "execution.log"
	MetricsName      = "metrics.json"
	ResultName       = "result.json"
	ReceiptName      = "receipt.json"
)

// Materialize writes the three hashable artifacts for a completed run
// into dir and returns their names. receipt.json is not written here;
// it is added after hashing via WriteReceipt.
func Materialize(dir string, result *bench.Result, logLines []string) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("benchmark result is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	logData := []byte(strings.Join(logLines, "\n") + "\n")
	if err := writeFileAtomic(dir, ExecutionLogName, logData); err != nil {
		return nil, err
	}

	metricsData, err := marshalDoc(buildMetrics(result))
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}
	if err := writeFileAtomic(dir, MetricsName, metricsData); err != nil {
		return nil, err
	}

	resultData, err := marshalDoc(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if err := writeFileAtomic(dir, ResultName, resultData); err != nil {
		return nil, err
	}

	return []string{ExecutionLogName, MetricsName, ResultName}, nil
}

func marshalDoc(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// writeFileAtomic writes through a temp file in the same directory so
// a partially written artifact never carries a final name. Temp names
// end in .tmp and are excluded from hashing.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("finalize %s: %w", name, err)
	}
	return nil
}
