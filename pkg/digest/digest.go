// Package digest provides the 32-byte SHA-256 content digests used to
// bind task specs, artifact sets, and result documents. Digests render
// as 0x-prefixed lowercase hex and round-trip through JSON as strings.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Prefix is the canonical textual prefix for rendered digests.
const Prefix = "0x"

var errLength = errors.New("digest: expected 32 bytes")

// Digest is a SHA-256 content digest. The zero value is the reserved
// "absent" sentinel and is rejected by every protocol operation.
type Digest [Size]byte

// Sum computes the digest of b.
func Sum(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

// EmptySum returns the digest of the empty byte string. It is the
// defined hash of an empty artifact set.
func EmptySum() Digest {
	return Sum(nil)
}

// SumReader computes the digest of everything readable from r.
func SumReader(r io.Reader) (Digest, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// FromBytes copies a raw 32-byte digest.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("%w, got %d", errLength, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// Parse decodes a textual digest with or without the 0x prefix.
func Parse(s string) (Digest, error) {
	var d Digest
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), Prefix)
	if len(trimmed) != hex.EncodedLen(Size) {
		return d, fmt.Errorf("digest: expected %d hex chars, got %d", hex.EncodedLen(Size), len(trimmed))
	}
	if _, err := hex.Decode(d[:], []byte(trimmed)); err != nil {
		return d, fmt.Errorf("digest: decode %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for known-good constants. It panics on error.
func MustParse(s string) Digest {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the reserved zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Bytes returns a copy of the raw digest bytes.
func (d Digest) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// Hex returns the lowercase hex encoding without the 0x prefix.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String returns the canonical 0x-prefixed rendering.
func (d Digest) String() string {
	return Prefix + d.Hex()
}

// MarshalText renders the digest in canonical form.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a canonical or bare-hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
