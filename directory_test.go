package commitlog

// directory_test.go implements tests for the registry directory.

import (
	"slices"
	"sync"
	"testing"

	"github.com/aalhour/commitlog/internal/logging"
)

func newTestDirectory() *Directory {
	return NewDirectory(&Options{Logger: logging.Discard})
}

func TestDirectory_GetSharesRegistryPerPath(t *testing.T) {
	d := newTestDirectory()

	a1 := d.Get("/db/a")
	a2 := d.Get("/db/a")
	b := d.Get("/db/b")

	if a1 != a2 {
		t.Error("Get with the same path should return the same registry")
	}
	if a1 == b {
		t.Error("Get with different paths should return distinct registries")
	}
	if d.Len() != 2 {
		t.Errorf("Len = %d, want 2", d.Len())
	}
	if got := d.Paths(); !slices.Equal(got, []string{"/db/a", "/db/b"}) {
		t.Errorf("Paths = %v", got)
	}
}

func TestDirectory_RegistriesInheritOptions(t *testing.T) {
	m := NewLogBufferManager(0, false)
	d := NewDirectory(&Options{Logger: logging.Discard, BufferManager: m})

	d.Get("/db/a").AddCommit(1, NewPayload([]byte("abcd")))
	d.Get("/db/b").AddCommit(7, NewPayload([]byte("ef")))

	if got := m.MemoryUsage(); got != 6 {
		t.Errorf("shared manager usage = %d, want 6", got)
	}
}

// Contract: concurrent first access to a path creates exactly one registry.
func TestDirectory_ConcurrentGet(t *testing.T) {
	d := newTestDirectory()

	const goroutines = 16
	got := make([]*Registry, goroutines)
	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Go(func() {
			got[i] = d.Get("/db/shared")
		})
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if got[i] != got[0] {
			t.Fatalf("goroutine %d got a different registry", i)
		}
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}

func TestDirectory_AddReplaces(t *testing.T) {
	d := newTestDirectory()
	old := d.Get("/db/a")
	old.AddCommit(1, NewPayload([]byte("kept")))

	replacement := NewRegistry(&Options{Logger: logging.Discard})
	d.Add("/db/a", replacement)

	if d.Get("/db/a") != replacement {
		t.Fatal("Get should return the added registry")
	}
	if old.Len() != 1 {
		t.Error("a replaced registry should keep its entries for existing holders")
	}
}

func TestDirectory_RemoveReleasesAndForgets(t *testing.T) {
	d := newTestDirectory()
	r := d.Get("/db/a")
	commitRange(r, 1, 3)

	d.Remove("/db/a")
	if !r.Empty() {
		t.Error("Remove should release the removed registry's commit logs")
	}
	if d.Len() != 0 {
		t.Errorf("Len = %d, want 0", d.Len())
	}
	if d.Get("/db/a") == r {
		t.Error("Get after Remove should create a new registry")
	}

	// Removing an unknown path is a no-op.
	d.Remove("/db/missing")
}

func TestDirectory_Close(t *testing.T) {
	d := newTestDirectory()
	a := d.Get("/db/a")
	b := d.Get("/db/b")
	commitRange(a, 1, 4)
	commitRange(b, 1, 2)

	d.Close()
	if !a.Empty() || !b.Empty() {
		t.Error("Close should release every registry")
	}
	if d.Len() != 0 {
		t.Errorf("Len after Close = %d, want 0", d.Len())
	}
	if d.Get("/db/a") == a {
		t.Error("Get after Close should create a new registry")
	}
}

func TestDefaultDirectory(t *testing.T) {
	ResetDefaultDirectory()
	t.Cleanup(ResetDefaultDirectory)

	d := DefaultDirectory()
	if DefaultDirectory() != d {
		t.Fatal("DefaultDirectory should return the same directory until reset")
	}
	r := d.Get("/db/default")
	commitRange(r, 1, 2)

	ResetDefaultDirectory()
	if !r.Empty() {
		t.Error("ResetDefaultDirectory should release retained commit logs")
	}
	if DefaultDirectory() == d {
		t.Error("DefaultDirectory after reset should be a new directory")
	}
}
