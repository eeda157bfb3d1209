// Package mempool provides reusable byte buffers for transaction logs.
//
// Collectors draw their write buffers from a Pool, and registries configured to
// recycle payloads return released commit buffers to it, so steady-state commit
// traffic allocates little.
package mempool

import (
	"sync"
	"sync/atomic"
)

// BucketSizes defines the buffer capacity buckets.
var BucketSizes = [6]int{
	256,         // 256 bytes
	1024,        // 1KB
	4 * 1024,    // 4KB
	16 * 1024,   // 16KB
	64 * 1024,   // 64KB
	1024 * 1024, // 1MB
}

// Pool manages reusable byte slices of various sizes.
type Pool struct {
	pools [len(BucketSizes)]sync.Pool

	gets  atomic.Uint64
	hits  atomic.Uint64
	puts  atomic.Uint64
	drops atomic.Uint64
}

// Stats reports pool usage.
type Stats struct {
	Gets    uint64 // Total Get calls
	Hits    uint64 // Served from a pooled buffer
	Puts    uint64 // Buffers accepted back
	Dropped uint64 // Buffers rejected (too small or too large)
}

// NewPool creates a new Pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get retrieves a zero-length byte slice with capacity of at least minSize.
func (bp *Pool) Get(minSize int) []byte {
	bp.gets.Add(1)
	bucket := bucketFor(minSize)
	if bucket < 0 {
		return make([]byte, 0, minSize)
	}

	if bufPtr, ok := bp.pools[bucket].Get().(*[]byte); ok && cap(*bufPtr) >= minSize {
		bp.hits.Add(1)
		return (*bufPtr)[:0]
	}
	return make([]byte, 0, BucketSizes[bucket])
}

// Put returns a byte slice to the pool. The caller must not use buf afterwards.
func (bp *Pool) Put(buf []byte) {
	bucket := bucketHolding(cap(buf))
	if bucket < 0 || cap(buf) > BucketSizes[len(BucketSizes)-1]*2 {
		bp.drops.Add(1)
		return
	}

	bp.puts.Add(1)
	buf = buf[:0]
	bp.pools[bucket].Put(&buf)
}

// Stats returns a snapshot of the pool counters.
func (bp *Pool) Stats() Stats {
	return Stats{
		Gets:    bp.gets.Load(),
		Hits:    bp.hits.Load(),
		Puts:    bp.puts.Load(),
		Dropped: bp.drops.Load(),
	}
}

// bucketFor returns the smallest bucket that satisfies a request of size bytes.
func bucketFor(size int) int {
	for i, bucketSize := range BucketSizes {
		if size <= bucketSize {
			return i
		}
	}
	return -1
}

// bucketHolding returns the largest bucket whose size a buffer of capacity c covers,
// so every buffer pooled in bucket i has capacity >= BucketSizes[i].
func bucketHolding(c int) int {
	for i := len(BucketSizes) - 1; i >= 0; i-- {
		if c >= BucketSizes[i] {
			return i
		}
	}
	return -1
}

// GlobalPool is the default buffer pool shared by collectors and registries.
var GlobalPool = NewPool()
