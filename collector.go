package commitlog

// collector.go implements the transaction log collector.
//
// The storage engine drives one Collector per session through the write
// transaction protocol:
//
//	BeginWriteTransaction -> {Reserve, Append}* -> CommitWriteTransaction | RollbackWriteTransaction
//
// On commit the accumulated bytes become the next version in the shared
// Registry. Readers use their own Collector on the same path to fetch ranges
// and to advance the watermark.

import (
	"fmt"

	"github.com/aalhour/commitlog/internal/logging"
	"github.com/aalhour/commitlog/internal/mempool"
)

// TransactLog is the contract between the storage engine and a commit-log
// collector. The engine guarantees one transaction in flight per instance and
// never calls Begin/Reserve/Append/Commit/Rollback concurrently on it.
type TransactLog interface {
	// DatabasePath returns the path the log was opened for.
	DatabasePath() string

	// BeginWriteTransaction starts collecting a new transaction.
	BeginWriteTransaction()

	// Reserve makes room for n more bytes.
	Reserve(n int)

	// Append adds data to the transaction being collected.
	Append(data []byte)

	// CommitWriteTransaction stores the collected bytes as version
	// priorVersion+1 and returns that version.
	CommitWriteTransaction(priorVersion uint64) uint64

	// RollbackWriteTransaction discards the collected bytes and returns them
	// for read-only use until the next BeginWriteTransaction.
	RollbackWriteTransaction() []byte

	// GetCommitEntries fills out with views of versions (from, to].
	GetCommitEntries(from, to uint64, out [][]byte)

	// SetOldestVersionNeeded releases versions <= version.
	SetOldestVersionNeeded(version uint64)

	// ResetLogManagement releases every retained version.
	ResetLogManagement()
}

var _ TransactLog = (*Collector)(nil)

type txState int

const (
	txIdle txState = iota
	txCollecting
)

func (s txState) String() string {
	if s == txCollecting {
		return "collecting"
	}
	return "idle"
}

// Collector accumulates the bytes of a write transaction and hands them to a
// Registry on commit.
//
// Write-side methods are not safe for concurrent use. The read-side
// pass-throughs (GetCommitEntries, SetOldestVersionNeeded, ResetLogManagement)
// only touch the registry and may be called from any goroutine.
type Collector struct {
	path     string
	registry *Registry

	// buf is owned by the collector until commit; nil right after a commit.
	buf      []byte
	lastSize int
	state    txState

	initialSize   int
	logger        Logger
	stats         Statistics
	bufferManager *LogBufferManager
	pool          *mempool.Pool
}

// NewCollector opens a collector for path on the process-wide directory.
func NewCollector(path string, opts *Options) *Collector {
	return NewCollectorFromDirectory(DefaultDirectory(), path, opts)
}

// NewCollectorFromDirectory opens a collector for path on d.
func NewCollectorFromDirectory(d *Directory, path string, opts *Options) *Collector {
	return NewCollectorWithRegistry(path, d.Get(path), opts)
}

// NewCollectorWithRegistry opens a collector for path bound to r.
// The collector does not own r.
func NewCollectorWithRegistry(path string, r *Registry, opts *Options) *Collector {
	o := opts.sanitize()
	return &Collector{
		path:          path,
		registry:      r,
		initialSize:   o.InitialBufferSize,
		logger:        o.Logger,
		stats:         o.Statistics,
		bufferManager: o.BufferManager,
		pool:          mempool.GlobalPool,
	}
}

// DatabasePath returns the path the collector was opened for.
func (c *Collector) DatabasePath() string {
	return c.path
}

// Registry returns the registry the collector is bound to.
func (c *Collector) Registry() *Registry {
	return c.registry
}

// BeginWriteTransaction starts collecting a transaction. The write buffer from
// the previous transaction is reused; after a commit a fresh one is taken from
// the buffer pool, sized to the last commit.
//
// With a stalling LogBufferManager this waits until retained history is back
// under the limit.
func (c *Collector) BeginWriteTransaction() {
	if c.state != txIdle {
		c.violation("begin write transaction while %s", c.state)
	}
	if c.bufferManager != nil && c.bufferManager.WaitIfStalled() {
		c.logger.Infof("%s%s: write stalled on retained commit-log memory", logging.NSCollector, c.path)
	}

	if c.buf == nil {
		c.buf = c.pool.Get(max(c.lastSize, c.initialSize))
	}
	c.buf = c.buf[:0]
	c.state = txCollecting
}

// Reserve makes room for n more bytes, growing the buffer geometrically and
// preserving what was written so far.
func (c *Collector) Reserve(n int) {
	c.requireCollecting("reserve")
	c.reserve(n)
}

func (c *Collector) reserve(n int) {
	if cap(c.buf)-len(c.buf) >= n {
		return
	}
	grown := c.pool.Get(max(2*cap(c.buf), len(c.buf)+n))
	grown = append(grown, c.buf...)
	c.pool.Put(c.buf)
	c.buf = grown
}

// Append adds data to the transaction being collected.
func (c *Collector) Append(data []byte) {
	c.requireCollecting("append")
	c.reserve(len(data))
	c.buf = append(c.buf, data...)
}

// Len returns the number of bytes collected in the current transaction.
func (c *Collector) Len() int {
	return len(c.buf)
}

// CommitWriteTransaction hands the collected bytes to the registry as version
// priorVersion+1 and returns that version, which becomes the engine's current
// version. The collector gives up the buffer; the next transaction gets a new one.
func (c *Collector) CommitWriteTransaction(priorVersion uint64) uint64 {
	c.requireCollecting("commit")

	payload := NewPayload(c.buf)
	c.lastSize = len(c.buf)
	c.buf = nil
	c.state = txIdle

	newVersion := priorVersion + 1
	c.registry.AddCommit(newVersion, payload)
	return newVersion
}

// RollbackWriteTransaction discards the collected bytes without storing them.
// The returned slice holds the bytes written so far so the engine can continue
// a read view from the partial state; it is valid until the next
// BeginWriteTransaction.
func (c *Collector) RollbackWriteTransaction() []byte {
	c.requireCollecting("rollback")

	written := c.buf[:len(c.buf):len(c.buf)]
	c.buf = c.buf[:0]
	c.state = txIdle
	recordTick(c.stats, TickerTransactionsRolledBack, 1)
	return written
}

// GetCommitEntries forwards to Registry.GetCommitEntries.
func (c *Collector) GetCommitEntries(from, to uint64, out [][]byte) {
	c.registry.GetCommitEntries(from, to, out)
}

// SetOldestVersionNeeded forwards to Registry.SetOldestVersionNeeded.
func (c *Collector) SetOldestVersionNeeded(version uint64) {
	c.registry.SetOldestVersionNeeded(version)
}

// ResetLogManagement forwards to Registry.ResetLogManagement.
func (c *Collector) ResetLogManagement() {
	c.registry.ResetLogManagement()
}

// Close returns the collector's write buffer to the pool. It does not touch
// the registry. A transaction in flight is discarded.
func (c *Collector) Close() {
	if c.buf != nil {
		c.pool.Put(c.buf)
		c.buf = nil
	}
	c.state = txIdle
}

func (c *Collector) requireCollecting(op string) {
	if c.state != txCollecting {
		c.violation("%s outside a write transaction", op)
	}
}

func (c *Collector) violation(format string, args ...any) {
	msg := fmt.Sprintf("%s: ", c.path) + fmt.Sprintf(format, args...)
	c.logger.Fatalf("%s%s", logging.NSCollector, msg)
	panic(fmt.Errorf("%w: %s", ErrProtocolViolation, msg)) //nolint:forbidigo // intentional panic for precondition violation
}
