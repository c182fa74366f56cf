package taskspec

import (
	"encoding/json"
	"fmt"

	"github.com/anxbt/InfraProof/pkg/digest"
)

// CanonicalJSON returns the canonical serialization of the spec: JSON
// with object keys sorted lexicographically at every level. Requesters
// and verifiers must hash exactly these bytes for spec hashes to agree.
func CanonicalJSON(s *Spec) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal task spec: %w", err)
	}

	// Round-trip through a generic map so encoding/json re-emits every
	// object with sorted keys.
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("normalize task spec: %w", err)
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical task spec: %w", err)
	}
	return canonical, nil
}

// Hash computes the spec hash over the canonical serialization. The
// spec must validate first; a spec that fails validation has no hash.
func Hash(s *Spec) (digest.Digest, error) {
	if err := s.Validate(); err != nil {
		return digest.Digest{}, err
	}
	b, err := CanonicalJSON(s)
	if err != nil {
		return digest.Digest{}, err
	}
	return digest.Sum(b), nil
}
