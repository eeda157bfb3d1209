package commitlog

// directory.go implements the per-path registry directory.
//
// Every collector opened on the same database path within a process must see
// the same Registry. The Directory hands out one Registry per path, creating it
// on first use.

import (
	"slices"
	"sync"

	"github.com/aalhour/commitlog/internal/logging"
)

// Directory maps database paths to their registries.
// Paths are used verbatim; callers normalize them before lookup.
type Directory struct {
	mu         sync.Mutex
	registries map[string]*Registry
	opts       *Options
}

// NewDirectory creates an empty directory. Registries created by Get use opts.
func NewDirectory(opts *Options) *Directory {
	return &Directory{
		registries: make(map[string]*Registry),
		opts:       opts.sanitize(),
	}
}

// Get returns the registry for path, creating it if absent.
// Calls with the same path return the same *Registry.
func (d *Directory) Get(path string) *Registry {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.registries[path]; ok {
		return r
	}
	r := NewRegistry(d.opts)
	d.registries[path] = r
	d.opts.Logger.Debugf("%screated registry for %q", logging.NSDirectory, path)
	return r
}

// Add installs r as the registry for path, replacing any existing one.
// A replaced registry is left untouched; its holders keep using it.
func (d *Directory) Add(path string, r *Registry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.registries[path]; ok {
		d.opts.Logger.Infof("%sreplacing registry for %q", logging.NSDirectory, path)
	}
	d.registries[path] = r
}

// Remove drops the registry for path and releases everything it retains.
// The caller guarantees nothing else still uses that registry, for example
// because the database file was deleted. A later Get creates a new registry.
func (d *Directory) Remove(path string) {
	d.mu.Lock()
	r, ok := d.registries[path]
	delete(d.registries, path)
	d.mu.Unlock()

	if ok {
		r.ResetLogManagement()
		d.opts.Logger.Debugf("%sremoved registry for %q", logging.NSDirectory, path)
	}
}

// Len returns the number of registries in the directory.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.registries)
}

// Paths returns the registered paths in sorted order.
func (d *Directory) Paths() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	paths := make([]string, 0, len(d.registries))
	for path := range d.registries {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// Close releases every registry's commit logs and empties the directory.
// The directory stays usable; Get starts from fresh registries.
func (d *Directory) Close() {
	d.mu.Lock()
	registries := d.registries
	d.registries = make(map[string]*Registry)
	d.mu.Unlock()

	for _, r := range registries {
		r.ResetLogManagement()
	}
}

var (
	defaultDirMu sync.Mutex
	defaultDir   *Directory
)

// DefaultDirectory returns the process-wide directory, creating it with
// DefaultOptions on first use. It lives until process exit or
// ResetDefaultDirectory.
func DefaultDirectory() *Directory {
	defaultDirMu.Lock()
	defer defaultDirMu.Unlock()

	if defaultDir == nil {
		defaultDir = NewDirectory(DefaultOptions())
	}
	return defaultDir
}

// ResetDefaultDirectory closes the process-wide directory and discards it.
// The next DefaultDirectory call creates a new one. Tests use it for isolation.
func ResetDefaultDirectory() {
	defaultDirMu.Lock()
	d := defaultDir
	defaultDir = nil
	defaultDirMu.Unlock()

	if d != nil {
		d.Close()
	}
}
