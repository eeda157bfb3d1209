package commitlog

// log_buffer_manager.go implements memory accounting for retained commit logs.
//
// A LogBufferManager tracks the payload bytes held by one or more registries.
// It can be shared by every registry in a Directory to put a process-wide budget
// on retained history.

import (
	"sync"
	"sync/atomic"
	"time"
)

// LogBufferManager accounts for the memory held by retained commit payloads.
//
// Registries never block on it: they only reserve on AddCommit and free on release.
// When stalls are allowed, collectors wait in BeginWriteTransaction until readers
// advance their watermarks far enough to bring usage back under the limit.
type LogBufferManager struct {
	// Buffer size limit (0 = unlimited)
	bufferSize uint64

	memoryUsed atomic.Uint64

	allowStall bool

	stallCond *sync.Cond
	stallMu   sync.Mutex
	isStalled atomic.Bool

	stats LogBufferStats
	mu    sync.Mutex
}

// LogBufferStats tracks memory accounting statistics.
type LogBufferStats struct {
	TotalReserved   uint64 // Total bytes reserved
	TotalFreed      uint64 // Total bytes freed
	PeakUsage       uint64 // Peak retained bytes
	StallEvents     uint64 // Number of times a writer stalled
	StallDurationNs uint64 // Total stall duration in nanoseconds
}

// NewLogBufferManager creates a new LogBufferManager.
//
// Parameters:
//   - bufferSize: Retained-bytes limit (0 = unlimited, accounting only)
//   - allowStall: If true, writers stall at the start of a transaction while usage exceeds the limit
//
// Example:
//
//	// 64MB of retained history, stall writers beyond that
//	m := NewLogBufferManager(64<<20, true)
func NewLogBufferManager(bufferSize uint64, allowStall bool) *LogBufferManager {
	m := &LogBufferManager{
		bufferSize: bufferSize,
		allowStall: allowStall,
	}
	m.stallCond = sync.NewCond(&m.stallMu)
	return m
}

// Enabled returns true if a memory limit is configured.
func (m *LogBufferManager) Enabled() bool {
	return m.bufferSize > 0
}

// BufferSize returns the configured limit.
func (m *LogBufferManager) BufferSize() uint64 {
	return m.bufferSize
}

// MemoryUsage returns the payload bytes currently retained.
func (m *LogBufferManager) MemoryUsage() uint64 {
	return m.memoryUsed.Load()
}

// ShouldTrim reports whether retained history has reached 7/8 of the limit.
// Collaborators use it as a hint to push lagging readers forward.
func (m *LogBufferManager) ShouldTrim() bool {
	if !m.Enabled() {
		return false
	}
	return m.memoryUsed.Load() >= m.bufferSize*7/8
}

// ReserveMem records mem newly retained bytes.
func (m *LogBufferManager) ReserveMem(mem uint64) {
	newUsed := m.memoryUsed.Add(mem)

	m.mu.Lock()
	m.stats.TotalReserved += mem
	if newUsed > m.stats.PeakUsage {
		m.stats.PeakUsage = newUsed
	}
	m.mu.Unlock()
}

// FreeMem records mem released bytes.
func (m *LogBufferManager) FreeMem(mem uint64) {
	if mem == 0 {
		return
	}
	m.memoryUsed.Add(^(mem - 1)) // Atomic subtract

	m.mu.Lock()
	m.stats.TotalFreed += mem
	m.mu.Unlock()

	m.maybeEndStall()
}

// WaitIfStalled blocks while retained memory is at or above the limit.
// Returns true if the caller was stalled.
func (m *LogBufferManager) WaitIfStalled() bool {
	if !m.allowStall || !m.Enabled() {
		return false
	}
	if m.memoryUsed.Load() < m.bufferSize {
		return false
	}

	start := time.Now()
	m.stallMu.Lock()
	m.isStalled.Store(true)
	m.mu.Lock()
	m.stats.StallEvents++
	m.mu.Unlock()

	for m.memoryUsed.Load() >= m.bufferSize {
		m.stallCond.Wait()
	}
	m.isStalled.Store(false)
	m.stallMu.Unlock()

	m.mu.Lock()
	m.stats.StallDurationNs += uint64(time.Since(start).Nanoseconds())
	m.mu.Unlock()
	return true
}

// IsStalled returns true if a writer is currently stalled.
func (m *LogBufferManager) IsStalled() bool {
	return m.isStalled.Load()
}

// maybeEndStall wakes stalled writers once usage drops below the limit.
func (m *LogBufferManager) maybeEndStall() {
	if !m.allowStall || !m.isStalled.Load() {
		return
	}
	if m.memoryUsed.Load() < m.bufferSize {
		m.stallMu.Lock()
		m.isStalled.Store(false)
		m.stallCond.Broadcast()
		m.stallMu.Unlock()
	}
}

// Stats returns a copy of the statistics.
func (m *LogBufferManager) Stats() LogBufferStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// ResetStats resets the statistics.
func (m *LogBufferManager) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = LogBufferStats{}
}

// UsageRatio returns the current usage as a ratio of the limit (0.0 to 1.0+).
func (m *LogBufferManager) UsageRatio() float64 {
	if !m.Enabled() {
		return 0
	}
	return float64(m.memoryUsed.Load()) / float64(m.bufferSize)
}
