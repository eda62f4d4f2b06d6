package catalog

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// ComparisonAlgorithm is the digest used for change detection and junk
// signatures. Every member of the algorithm set identifies content equally
// well; sha512 is the one the catalog compares by.
const ComparisonAlgorithm = "sha512"

// hashConstructors maps each supported algorithm name to its constructor.
// The set is fixed: every cataloged file carries exactly one digest per entry.
var hashConstructors = map[string]func() hash.Hash{
	"blake2b":  func() hash.Hash { h, _ := blake2b.New512(nil); return h },
	"blake2s":  func() hash.Hash { h, _ := blake2s.New256(nil); return h },
	"sha1":     sha1.New,
	"sha224":   sha256.New224,
	"sha256":   sha256.New,
	"sha384":   sha512.New384,
	"sha3_224": sha3.New224,
	"sha3_256": sha3.New256,
	"sha3_384": sha3.New384,
	"sha3_512": sha3.New512,
	"sha512":   sha512.New,
}

// HashAlgorithms returns the supported algorithm names in sorted order.
func HashAlgorithms() []string {
	names := make([]string, 0, len(hashConstructors))
	for name := range hashConstructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HashFile streams the file once and returns a hex digest per supported
// algorithm. The file is read in a single chunked pass feeding all hash
// states concurrently; it is never opened or read more than once. Any open
// or read failure returns ErrIOUnavailable with no partial result.
func HashFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIOUnavailable, path, err)
	}
	defer f.Close()

	return HashReader(f, path)
}

// HashReader computes the full digest set from a single pass over r.
// name is used for error reporting only.
func HashReader(r io.Reader, name string) (map[string]string, error) {
	hashes := make(map[string]hash.Hash, len(hashConstructors))
	writers := make([]io.Writer, 0, len(hashConstructors))
	for algo, construct := range hashConstructors {
		h := construct()
		hashes[algo] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrIOUnavailable, name, err)
	}

	digests := make(map[string]string, len(hashes))
	for algo, h := range hashes {
		digests[algo] = hex.EncodeToString(h.Sum(nil))
	}
	return digests, nil
}
