package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anxbt/InfraProof/pkg/digest"
)

// Receipt is the receipt.json document: the local record of what was
// submitted for a run. It is written only after the artifact set is
// hashed, so it is never part of the artifact hash itself.
type Receipt struct {
	TaskID       uint64        `json:"taskId"`
	ArtifactHash digest.Digest `json:"artifactHash"`
	ResultHash   digest.Digest `json:"resultHash"`
	ArtifactURL  string        `json:"artifactUrl"`
	CreatedAt    time.Time     `json:"createdAt"`
	Operator     string        `json:"operator"`
}

// WriteReceipt adds receipt.json to an already-hashed artifact set.
func WriteReceipt(dir string, doc Receipt) error {
	if doc.ArtifactHash.IsZero() || doc.ResultHash.IsZero() {
		return fmt.Errorf("receipt requires non-zero hashes")
	}
	if strings.TrimSpace(doc.ArtifactURL) == "" {
		return fmt.Errorf("receipt requires an artifact locator")
	}

	data, err := marshalDoc(doc)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	return writeFileAtomic(dir, ReceiptName, data)
}

// ReadReceipt loads a receipt.json document.
func ReadReceipt(path string) (Receipt, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Receipt{}, fmt.Errorf("read receipt: %w", err)
	}
	var doc Receipt
	if err := json.Unmarshal(b, &doc); err != nil {
		return Receipt{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return doc, nil
}
