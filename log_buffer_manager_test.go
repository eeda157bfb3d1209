// log_buffer_manager_test.go implements tests for the log buffer manager.
package commitlog

import (
	"testing"
	"time"
)

func TestLogBufferManagerBasic(t *testing.T) {
	m := NewLogBufferManager(1024*1024, false)

	if !m.Enabled() {
		t.Error("expected manager to be enabled")
	}
	if m.BufferSize() != 1024*1024 {
		t.Errorf("expected buffer size 1MB, got %d", m.BufferSize())
	}
	if m.MemoryUsage() != 0 {
		t.Errorf("expected 0 usage, got %d", m.MemoryUsage())
	}
}

func TestLogBufferManagerUnlimited(t *testing.T) {
	m := NewLogBufferManager(0, true)

	if m.Enabled() {
		t.Error("expected manager to be unlimited")
	}
	m.ReserveMem(1 << 30)
	if m.ShouldTrim() {
		t.Error("unlimited manager should never ask for a trim")
	}
	if m.WaitIfStalled() {
		t.Error("unlimited manager should never stall")
	}
	if m.UsageRatio() != 0 {
		t.Errorf("UsageRatio = %f, want 0", m.UsageRatio())
	}
	if m.MemoryUsage() != 1<<30 {
		t.Errorf("unlimited manager should still account, got %d", m.MemoryUsage())
	}
}

func TestLogBufferManagerReserveAndFree(t *testing.T) {
	m := NewLogBufferManager(1024*1024, false)

	m.ReserveMem(100 * 1024)
	m.ReserveMem(200 * 1024)
	if m.MemoryUsage() != 300*1024 {
		t.Errorf("expected 300KB usage, got %d", m.MemoryUsage())
	}

	m.FreeMem(100 * 1024)
	if m.MemoryUsage() != 200*1024 {
		t.Errorf("expected 200KB usage, got %d", m.MemoryUsage())
	}
	m.FreeMem(0)

	stats := m.Stats()
	if stats.TotalReserved != 300*1024 {
		t.Errorf("TotalReserved = %d", stats.TotalReserved)
	}
	if stats.TotalFreed != 100*1024 {
		t.Errorf("TotalFreed = %d", stats.TotalFreed)
	}
	if stats.PeakUsage != 300*1024 {
		t.Errorf("PeakUsage = %d", stats.PeakUsage)
	}

	m.ResetStats()
	if m.Stats() != (LogBufferStats{}) {
		t.Error("ResetStats should clear statistics")
	}
}

func TestLogBufferManagerShouldTrim(t *testing.T) {
	m := NewLogBufferManager(800, false)

	m.ReserveMem(699)
	if m.ShouldTrim() {
		t.Error("should not trim below 7/8 of the limit")
	}
	m.ReserveMem(1)
	if !m.ShouldTrim() {
		t.Error("should trim at 7/8 of the limit")
	}
	if got := m.UsageRatio(); got != 0.875 {
		t.Errorf("UsageRatio = %f, want 0.875", got)
	}
}

func TestLogBufferManagerStallReleasedByFree(t *testing.T) {
	m := NewLogBufferManager(1000, true)
	m.ReserveMem(1500)

	done := make(chan bool)
	go func() {
		done <- m.WaitIfStalled()
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !m.IsStalled() {
		if time.Now().After(deadline) {
			t.Fatal("writer never stalled")
		}
		time.Sleep(time.Millisecond)
	}

	m.FreeMem(600)
	select {
	case stalled := <-done:
		if !stalled {
			t.Error("WaitIfStalled should report that it stalled")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer still stalled after usage dropped below the limit")
	}

	if m.IsStalled() {
		t.Error("IsStalled should be false after the stall ended")
	}
	if s := m.Stats(); s.StallEvents != 1 {
		t.Errorf("StallEvents = %d, want 1", s.StallEvents)
	}
}

func TestLogBufferManagerNoStallUnderLimit(t *testing.T) {
	m := NewLogBufferManager(1000, true)
	m.ReserveMem(999)
	if m.WaitIfStalled() {
		t.Error("should not stall below the limit")
	}
}
