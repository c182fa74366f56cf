package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/anxbt/InfraProof/pkg/digest"
)

// DefaultIgnoreGlobs are the filename patterns excluded from artifact
// hashing: in-flight temp files and dotfiles.
var DefaultIgnoreGlobs = []string{"*.tmp", ".*"}

// Hasher computes artifact-set hashes over a directory.
type Hasher struct {
	ignoreGlobs []string
}

// NewHasher returns a Hasher with the given ignore patterns, or the
// defaults when none are given.
func NewHasher(ignoreGlobs ...string) *Hasher {
	if len(ignoreGlobs) == 0 {
		ignoreGlobs = DefaultIgnoreGlobs
	}
	return &Hasher{ignoreGlobs: ignoreGlobs}
}

// HashSet computes the artifact hash of dir: list regular files,
// drop ignored names, sort filenames lexicographically, content-hash
// each file, concatenate the raw digests in that order, and hash the
// concatenation. An empty directory yields the hash of the empty byte
// string. The hashed filenames are returned in hashing order.
func (h *Hasher) HashSet(dir string) (digest.Digest, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return digest.Digest{}, nil, fmt.Errorf("read artifact dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if h.ignored(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	concat := make([]byte, 0, len(names)*digest.Size)
	for _, name := range names {
		sum, err := HashFile(filepath.Join(dir, name))
		if err != nil {
			return digest.Digest{}, nil, err
		}
		concat = append(concat, sum.Bytes()...)
	}

	return digest.Sum(concat), names, nil
}

func (h *Hasher) ignored(name string) bool {
	for _, glob := range h.ignoreGlobs {
		if ok, err := doublestar.Match(glob, name); err == nil && ok {
			return true
		}
	}
	return false
}

// HashFile computes the content hash of a single file. Verifiers use
// it to check a downloaded result.json against the recorded
// resultHash without needing the rest of the set.
func HashFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	sum, err := digest.SumReader(f)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return sum, nil
}

// HashResult computes the result hash for an artifact directory: the
// content hash of result.json alone.
func HashResult(dir string) (digest.Digest, error) {
	return HashFile(filepath.Join(dir, ResultName))
}
