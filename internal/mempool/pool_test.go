package mempool

// pool_test.go tests the buffer pool implementation.

import "testing"

func TestPoolBasic(t *testing.T) {
	pool := NewPool()

	sizes := []int{0, 100, 500, 2000, 10000, 50000, 500000}
	for _, size := range sizes {
		buf := pool.Get(size)
		if cap(buf) < size {
			t.Errorf("Get(%d): expected cap >= %d, got %d", size, size, cap(buf))
		}
		if len(buf) != 0 {
			t.Errorf("Get(%d): expected len 0, got %d", size, len(buf))
		}
		pool.Put(buf)
	}
}

func TestPoolReturnedBufferSatisfiesRequest(t *testing.T) {
	pool := NewPool()

	// 300 bytes of capacity belongs in the 256B bucket and must never be
	// handed out for a 1KB request.
	pool.Put(make([]byte, 10, 300))
	buf := pool.Get(1000)
	if cap(buf) < 1000 {
		t.Errorf("expected cap >= 1000, got %d", cap(buf))
	}
}

func TestPoolOversized(t *testing.T) {
	pool := NewPool()

	buf := pool.Get(4 * 1024 * 1024)
	if cap(buf) < 4*1024*1024 {
		t.Errorf("expected cap >= 4MB, got %d", cap(buf))
	}

	pool.Put(buf)
	if got := pool.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}
}

func TestPoolUndersizedDropped(t *testing.T) {
	pool := NewPool()

	pool.Put(make([]byte, 0, 16))
	pool.Put(nil)
	if got := pool.Stats().Dropped; got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
}

func TestPoolStats(t *testing.T) {
	pool := NewPool()

	buf := pool.Get(1024)
	pool.Put(buf)
	_ = pool.Get(512)

	s := pool.Stats()
	if s.Gets != 2 {
		t.Errorf("Gets = %d, want 2", s.Gets)
	}
	if s.Puts != 1 {
		t.Errorf("Puts = %d, want 1", s.Puts)
	}
	if s.Hits > 1 {
		t.Errorf("Hits = %d, want <= 1", s.Hits)
	}
}

func TestBucketHolding(t *testing.T) {
	tests := []struct {
		capacity int
		want     int
	}{
		{0, -1},
		{255, -1},
		{256, 0},
		{1023, 0},
		{1024, 1},
		{70000, 4},
		{1 << 20, 5},
		{3 << 20, 5},
	}
	for _, tt := range tests {
		if got := bucketHolding(tt.capacity); got != tt.want {
			t.Errorf("bucketHolding(%d) = %d, want %d", tt.capacity, got, tt.want)
		}
	}
}

func BenchmarkPoolGet(b *testing.B) {
	pool := NewPool()

	for b.Loop() {
		buf := pool.Get(1024)
		pool.Put(buf)
	}
}

func BenchmarkPoolGetParallel(b *testing.B) {
	pool := NewPool()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf := pool.Get(1024)
			pool.Put(buf)
		}
	})
}
