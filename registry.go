package commitlog

// registry.go implements the versioned commit-log registry.
//
// A Registry retains a contiguous window of commit logs [oldest, newest] for one
// database. The window lives in a slice addressed by version-base, so lookups
// are O(1). Releasing a prefix leaves holes at the front of the slice; once the
// holes make up more than half of it the live suffix is moved into a freshly
// sized slice, which keeps compaction cost amortized O(1) per commit.

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aalhour/commitlog/internal/checksum"
	"github.com/aalhour/commitlog/internal/logging"
	"github.com/aalhour/commitlog/internal/mempool"
)

// NoVersion is the reserved version meaning "no version exists yet".
// Committed versions start at 1.
const NoVersion uint64 = 0

var (
	// ErrProtocolViolation is carried by the panic raised when a caller breaks
	// the version or watermark protocol: a non-contiguous AddCommit, or a fetch
	// of a version outside the retained window. These are bugs in the caller's
	// bookkeeping and are not recoverable.
	ErrProtocolViolation = errors.New("commitlog: protocol violation")

	// ErrCorruption is returned when a retained payload no longer matches the
	// digest recorded when it was committed.
	ErrCorruption = errors.New("commitlog: corruption")
)

type commitEntry struct {
	data   []byte
	digest checksum.Digest
}

// Registry stores the commit logs of one database, keyed by version.
//
// A single mutex serializes every operation, reads included. Hold times are
// bounded by the number of entries fetched or released in one call.
//
// Ownership: the registry owns every payload it holds. Views returned by
// GetCommitEntries alias that memory and stay valid only until a watermark
// advance or reset releases their versions.
type Registry struct {
	mu sync.Mutex

	// commits[v-base] holds version v for v in [oldest, newest].
	// Slots below oldest-base have been released.
	commits []commitEntry
	base    uint64

	// oldest == NoVersion means the registry is empty.
	oldest uint64
	newest uint64

	retainedBytes uint64

	logger          Logger
	stats           Statistics
	bufferManager   *LogBufferManager
	verifyChecksums bool
	recycle         bool
	pool            *mempool.Pool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts *Options) *Registry {
	o := opts.sanitize()
	return &Registry{
		logger:          o.Logger,
		stats:           o.Statistics,
		bufferManager:   o.BufferManager,
		verifyChecksums: o.VerifyChecksums,
		recycle:         o.RecyclePayloads,
		pool:            mempool.GlobalPool,
	}
}

func (r *Registry) holdsCommits() bool {
	return r.oldest != NoVersion
}

func (r *Registry) index(version uint64) uint64 {
	return version - r.base
}

// AddCommit stores p as the commit log of version and takes ownership of it.
//
// If the registry is empty, version seeds the window. Otherwise version must be
// exactly NewestVersion()+1; anything else panics with ErrProtocolViolation.
func (r *Registry) AddCommit(version uint64, p Payload) {
	var digest checksum.Digest
	if r.verifyChecksums {
		digest = checksum.Of(p.data)
	}
	size := uint64(len(p.data))

	r.mu.Lock()
	defer r.mu.Unlock()

	if version == NoVersion {
		r.violation("add commit: version %d is reserved", NoVersion)
	}
	if !r.holdsCommits() {
		r.base = version
		r.oldest = version
	} else if version != r.newest+1 {
		r.violation("add commit: version %d does not follow newest version %d", version, r.newest)
	}

	r.commits = append(r.commits, commitEntry{data: p.data, digest: digest})
	r.newest = version
	r.retainedBytes += size

	if r.bufferManager != nil {
		r.bufferManager.ReserveMem(size)
	}
	recordTick(r.stats, TickerCommitsAdded, 1)
	recordTick(r.stats, TickerCommitBytesAdded, size)
	measure(r.stats, HistogramBytesPerCommit, size)
}

// GetCommitEntries fills out with views of the commit logs of versions
// (from, to], in ascending version order. out must have room for to-from views.
//
// Every requested version must be retained: OldestVersion() <= from+1 and
// to <= NewestVersion(). Violations panic with ErrProtocolViolation.
// The call does not allocate. The views must not be modified and are valid
// only until the versions they cover are released.
func (r *Registry) GetCommitEntries(from, to uint64, out [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from > to {
		r.violation("get commit entries: empty range (%d, %d]", from, to)
	}
	if n := to - from; uint64(len(out)) < n {
		r.violation("get commit entries: output holds %d views, range (%d, %d] needs %d", len(out), from, to, n)
	}
	r.fillLocked(from, to, out)
}

// CommitEntries returns views of the commit logs of versions (from, to].
// It is GetCommitEntries with an allocated output slice.
func (r *Registry) CommitEntries(from, to uint64) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from > to {
		r.violation("get commit entries: empty range (%d, %d]", from, to)
	}
	out := make([][]byte, to-from)
	r.fillLocked(from, to, out)
	return out
}

func (r *Registry) fillLocked(from, to uint64, out [][]byte) {
	if from == to {
		return
	}
	r.checkRetainedLocked(from, to)

	var fetched uint64
	for i, version := 0, from+1; version <= to; i, version = i+1, version+1 {
		data := r.commits[r.index(version)].data
		out[i] = data[:len(data):len(data)]
		fetched += uint64(len(data))
	}

	recordTick(r.stats, TickerEntriesFetched, to-from)
	recordTick(r.stats, TickerBytesFetched, fetched)
	measure(r.stats, HistogramEntriesPerFetch, to-from)
}

// checkRetainedLocked panics unless every version in (from, to] is retained.
func (r *Registry) checkRetainedLocked(from, to uint64) {
	if !r.holdsCommits() {
		r.violation("versions (%d, %d] requested from an empty registry", from, to)
	}
	if from+1 < r.oldest {
		r.violation("version %d requested but oldest retained version is %d", from+1, r.oldest)
	}
	if to > r.newest {
		r.violation("version %d requested but newest version is %d", to, r.newest)
	}
}

// SetOldestVersionNeeded releases every commit log with version <= watermark.
//
// Watermarks below OldestVersion() have nothing left to release and are
// ignored, so repeating a call is harmless. A watermark at (or beyond)
// NewestVersion() empties the registry and drops its backing storage.
// Otherwise the oldest retained version becomes watermark+1, and the storage is
// compacted once more than half of it is released slots.
func (r *Registry) SetOldestVersionNeeded(watermark uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.holdsCommits() || watermark < r.oldest {
		return
	}
	if watermark > r.newest {
		r.logger.Warnf("%swatermark %d is past newest version %d, releasing everything",
			logging.NSRegistry, watermark, r.newest)
		watermark = r.newest
	}

	r.releaseLocked(r.oldest, watermark)

	if watermark == r.newest {
		r.logger.Debugf("%sreleased all versions through %d", logging.NSRegistry, watermark)
		r.clearLocked()
		recordTick(r.stats, TickerFullReleases, 1)
		return
	}

	r.oldest = watermark + 1
	if r.index(r.oldest) > uint64(len(r.commits))>>1 {
		r.compactLocked()
	}
}

// compactLocked moves the live entries into storage sized exactly to fit them.
func (r *Registry) compactLocked() {
	live := r.commits[r.index(r.oldest) : r.index(r.newest)+1]
	released := len(r.commits) - len(live)

	commits := make([]commitEntry, len(live))
	copy(commits, live)
	r.commits = commits
	r.base = r.oldest

	r.logger.Debugf("%scompacted: dropped %d released slots, kept versions %d..%d",
		logging.NSRegistry, released, r.oldest, r.newest)
	recordTick(r.stats, TickerCompactions, 1)
	measure(r.stats, HistogramCompactionEntriesMoved, uint64(len(live)))
}

// ResetLogManagement releases every retained commit log and returns the
// registry to the empty state. The backing storage is dropped as well, so the
// next AddCommit seeds a fresh window exactly as after a full release.
func (r *Registry) ResetLogManagement() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.holdsCommits() {
		r.releaseLocked(r.oldest, r.newest)
		r.logger.Infof("%sreset: released versions %d..%d", logging.NSRegistry, r.oldest, r.newest)
	}
	r.clearLocked()
	recordTick(r.stats, TickerResets, 1)
}

// releaseLocked frees the payloads of versions [from, to].
func (r *Registry) releaseLocked(from, to uint64) {
	var bytes, recycled uint64
	for version := from; version <= to; version++ {
		e := &r.commits[r.index(version)]
		bytes += uint64(len(e.data))
		if r.recycle && e.data != nil {
			r.pool.Put(e.data)
			recycled++
		}
		*e = commitEntry{}
	}

	r.retainedBytes -= bytes
	if r.bufferManager != nil {
		r.bufferManager.FreeMem(bytes)
	}
	recordTick(r.stats, TickerCommitsReleased, to-from+1)
	recordTick(r.stats, TickerCommitBytesReleased, bytes)
	recordTick(r.stats, TickerPayloadsRecycled, recycled)
}

func (r *Registry) clearLocked() {
	r.commits = nil
	r.base = 0
	r.oldest = NoVersion
	r.newest = NoVersion
}

// VerifyCommitEntries checks the payloads of versions (from, to] against the
// digests recorded at commit time. It returns nil when checksums are disabled.
// The range must be retained, as for GetCommitEntries.
func (r *Registry) VerifyCommitEntries(from, to uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.verifyChecksums || from == to {
		return nil
	}
	if from > to {
		r.violation("verify commit entries: empty range (%d, %d]", from, to)
	}
	r.checkRetainedLocked(from, to)

	for version := from + 1; version <= to; version++ {
		e := &r.commits[r.index(version)]
		if got := checksum.Of(e.data); got != e.digest {
			r.logger.Errorf("%sversion %d digest mismatch: recorded %s, computed %s",
				logging.NSRegistry, version, e.digest, got)
			return fmt.Errorf("%w: version %d: payload digest %s does not match recorded %s",
				ErrCorruption, version, got, e.digest)
		}
	}
	return nil
}

// OldestVersion returns the oldest retained version, or NoVersion if empty.
func (r *Registry) OldestVersion() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.oldest
}

// NewestVersion returns the newest retained version, or NoVersion if empty.
func (r *Registry) NewestVersion() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newest
}

// Empty reports whether the registry retains no commit logs.
func (r *Registry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.holdsCommits()
}

// Len returns the number of retained commit logs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.holdsCommits() {
		return 0
	}
	return int(r.newest - r.oldest + 1)
}

// Capacity returns the allocated capacity of the backing storage, in entries.
func (r *Registry) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cap(r.commits)
}

// MemoryUsage returns the payload bytes currently retained.
func (r *Registry) MemoryUsage() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retainedBytes
}

// violation logs a protocol violation and panics. It must be called before any
// state is modified so the registry stays consistent for a recovering caller.
func (r *Registry) violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Fatalf("%s%s", logging.NSRegistry, msg)
	panic(fmt.Errorf("%w: %s", ErrProtocolViolation, msg)) //nolint:forbidigo // intentional panic for precondition violation
}
