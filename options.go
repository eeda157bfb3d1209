package commitlog

// options.go defines configuration for registries, directories and collectors.

import "github.com/aalhour/commitlog/internal/logging"

// Logger is the logging interface used by commitlog components.
// See internal/logging for the default implementations.
type Logger = logging.Logger

// DefaultInitialBufferSize is the capacity a collector requests for its first transaction.
const DefaultInitialBufferSize = 1024

// Options configures registries and collectors.
// A Directory passes its Options to every registry it creates.
type Options struct {
	// Logger receives diagnostics. Nil means a WARN-level logger on stderr.
	Logger Logger

	// Statistics, if non-nil, records tickers and histograms.
	Statistics Statistics

	// BufferManager, if non-nil, accounts for retained payload bytes. Share one
	// manager across registries to budget the whole process.
	BufferManager *LogBufferManager

	// VerifyChecksums records an XXH3 digest per commit so VerifyCommitEntries
	// can detect payloads mutated through a view.
	VerifyChecksums bool

	// RecyclePayloads returns released payloads to the shared buffer pool.
	// Only safe when readers never hold a view past the watermark advance that
	// releases it.
	RecyclePayloads bool

	// InitialBufferSize is the capacity of a collector's first write buffer.
	InitialBufferSize int
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		InitialBufferSize: DefaultInitialBufferSize,
	}
}

// sanitize returns a copy of opts with defaults filled in. It never returns nil.
func (opts *Options) sanitize() *Options {
	o := DefaultOptions()
	if opts != nil {
		*o = *opts
	}
	o.Logger = logging.OrDefault(o.Logger)
	if o.InitialBufferSize <= 0 {
		o.InitialBufferSize = DefaultInitialBufferSize
	}
	return o
}
