// Package checksum computes payload digests for commit-log integrity checks.
//
// Digests use XXH3-64 (github.com/zeebo/xxh3), the same hash family the storage
// engine uses for block checksums.
package checksum

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// Digest is the 64-bit XXH3 digest of a payload.
type Digest uint64

// Of computes the digest of data.
func Of(data []byte) Digest {
	return Digest(xxh3.Hash(data))
}

// String formats the digest as fixed-width hex.
func (d Digest) String() string {
	return fmt.Sprintf("%016x", uint64(d))
}
