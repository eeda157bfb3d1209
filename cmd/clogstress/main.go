// Concurrent stress test for the commit-log registry.
//
// Use `clogstress` to run one writer and several catching-up readers against a
// shared registry. The writer commits transactions whose payloads are derived
// from their version. Each reader fetches the versions it has not seen yet,
// checks every byte, publishes how far it got, and advances the watermark to
// the minimum over all readers.
//
// Run a stress test:
//
// ```bash
// ./bin/clogstress -commits=200000 -readers=8 -max-payload=4096
// ```
//
// Expose metrics while running:
//
// ```bash
// ./bin/clogstress -duration=1m -metrics-addr=:9100
// ```
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/aalhour/commitlog"
	"github.com/aalhour/commitlog/internal/logging"
	"github.com/aalhour/commitlog/internal/mempool"
)

var (
	numCommits  = flag.Uint64("commits", 100000, "Number of transactions to commit (0 = until -duration)")
	duration    = flag.Duration("duration", 0, "Stop committing after this long (0 = no limit)")
	numReaders  = flag.Int("readers", 4, "Number of catching-up readers")
	batchSize   = flag.Uint64("batch", 64, "Maximum versions fetched per read")
	maxPayload  = flag.Int("max-payload", 1024, "Maximum payload size in bytes")
	chunkSize   = flag.Int("chunk", 128, "Bytes appended per Append call")
	rollbackPct = flag.Int("rollback-pct", 5, "Percentage of transactions rolled back before committing")
	stallLimit  = flag.Uint64("stall-limit", 0, "Stall the writer while retained bytes exceed this (0 = never)")
	verify      = flag.Bool("verify", false, "Record payload digests and verify every fetched range")
	recycle     = flag.Bool("recycle", false, "Recycle released payloads into the buffer pool")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	verbose     = flag.Bool("v", false, "Verbose output")
)

// config holds one stress run's parameters.
type config struct {
	commits     uint64
	duration    time.Duration
	readers     int
	batch       uint64
	maxPayload  int
	chunk       int
	rollbackPct int
	stallLimit  uint64
	verify      bool
	recycle     bool
	logger      logging.Logger
}

// result summarizes a finished run.
type result struct {
	committed  uint64
	rolledBack uint64
	fetched    uint64
	elapsed    time.Duration
	stats      commitlog.Statistics
	buffers    commitlog.LogBufferStats
}

func main() {
	flag.Parse()

	level := logging.LevelInfo
	if *verbose {
		level = logging.LevelDebug
	}
	logger := logging.NewDefaultLogger(level)

	if *numCommits == 0 && *duration == 0 {
		fatal("one of -commits or -duration must be set")
	}
	if *numReaders < 1 || *batchSize < 1 || *maxPayload < 1 || *chunkSize < 1 {
		fatal("-readers, -batch, -max-payload and -chunk must be positive")
	}

	cfg := config{
		commits:     *numCommits,
		duration:    *duration,
		readers:     *numReaders,
		batch:       *batchSize,
		maxPayload:  *maxPayload,
		chunk:       *chunkSize,
		rollbackPct: *rollbackPct,
		stallLimit:  *stallLimit,
		verify:      *verify,
		recycle:     *recycle,
		logger:      logger,
	}

	fmt.Println("commit-log stress test")
	fmt.Printf("  commits=%d duration=%v readers=%d batch=%d max-payload=%d stall-limit=%d verify=%v recycle=%v\n\n",
		cfg.commits, cfg.duration, cfg.readers, cfg.batch, cfg.maxPayload, cfg.stallLimit, cfg.verify, cfg.recycle)

	stats := commitlog.NewStatistics()
	manager := commitlog.NewLogBufferManager(cfg.stallLimit, cfg.stallLimit > 0)

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(commitlog.NewPrometheusCollector(stats, manager, prometheus.Labels{"tool": "clogstress"}))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("%smetrics server: %v", logging.NSStress, err)
			}
		}()
		logger.Infof("%sserving metrics on %s/metrics", logging.NSStress, *metricsAddr)
	}

	res, err := run(context.Background(), cfg, stats, manager)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("✅ committed %d versions (%d rolled back) in %v\n", res.committed, res.rolledBack, res.elapsed.Round(time.Millisecond))
	fmt.Printf("   %.0f commits/s, %d entries fetched and verified\n",
		float64(res.committed)/res.elapsed.Seconds(), res.fetched)
	fmt.Printf("   peak retained %d bytes, %d stalls (%v)\n",
		res.buffers.PeakUsage, res.buffers.StallEvents, time.Duration(res.buffers.StallDurationNs))
	pool := mempool.GlobalPool.Stats()
	fmt.Printf("   buffer pool: %d gets, %d hits, %d puts, %d dropped\n\n", pool.Gets, pool.Hits, pool.Puts, pool.Dropped)
	fmt.Print(res.stats.String())
}

// run drives one writer and cfg.readers readers against a fresh registry.
func run(ctx context.Context, cfg config, stats commitlog.Statistics, manager *commitlog.LogBufferManager) (result, error) {
	opts := commitlog.DefaultOptions()
	opts.Logger = cfg.logger
	opts.Statistics = stats
	opts.BufferManager = manager
	opts.VerifyChecksums = cfg.verify
	opts.RecyclePayloads = cfg.recycle

	dir := commitlog.NewDirectory(opts)
	defer dir.Close()
	const path = "/clogstress"
	reg := dir.Get(path)

	h := &harness{
		cfg:  cfg,
		reg:  reg,
		seen: make([]atomic.Uint64, cfg.readers),
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	// A failed reader leaves the writer stalled on retained memory; resetting
	// the registry releases it. Readers hold h.mu while touching views.
	go func() {
		<-gctx.Done()
		if h.failed.Load() {
			h.mu.Lock()
			reg.ResetLogManagement()
			h.mu.Unlock()
		}
	}()

	g.Go(func() error {
		return h.write(gctx, commitlog.NewCollectorFromDirectory(dir, path, opts), start)
	})
	for i := range cfg.readers {
		g.Go(func() error {
			return h.read(gctx, i)
		})
	}

	err := g.Wait()
	res := result{
		committed:  h.final.Load(),
		rolledBack: h.rolledBack.Load(),
		fetched:    h.fetched.Load(),
		elapsed:    time.Since(start),
		stats:      stats,
		buffers:    manager.Stats(),
	}
	if err != nil {
		return res, err
	}
	if manager.MemoryUsage() != 0 {
		return res, fmt.Errorf("%d bytes still retained after every reader caught up", manager.MemoryUsage())
	}
	return res, nil
}

type harness struct {
	cfg config
	reg *commitlog.Registry

	// mu is held shared by readers while they hold views.
	mu sync.RWMutex

	seen       []atomic.Uint64
	final      atomic.Uint64
	done       atomic.Bool
	failed     atomic.Bool
	rolledBack atomic.Uint64
	fetched    atomic.Uint64
}

func (h *harness) write(ctx context.Context, c *commitlog.Collector, start time.Time) error {
	defer c.Close()
	defer h.done.Store(true)

	var version uint64
	for h.cfg.commits == 0 || version < h.cfg.commits {
		if ctx.Err() != nil {
			return nil
		}
		if h.cfg.duration > 0 && time.Since(start) >= h.cfg.duration {
			break
		}

		next := version + 1
		payload := payloadFor(next, h.cfg.maxPayload)

		c.BeginWriteTransaction()
		if rollback := int(next*2654435761%100) < h.cfg.rollbackPct; rollback {
			c.Append(payload[:len(payload)/2])
			if got := c.RollbackWriteTransaction(); !bytes.Equal(got, payload[:len(payload)/2]) {
				return fmt.Errorf("rollback of version %d returned %d unexpected bytes", next, len(got))
			}
			h.rolledBack.Add(1)
			c.BeginWriteTransaction()
		}
		c.Reserve(len(payload))
		for off := 0; off < len(payload); off += h.cfg.chunk {
			c.Append(payload[off:min(off+h.cfg.chunk, len(payload))])
		}
		version = c.CommitWriteTransaction(version)
		h.final.Store(version)
	}
	h.cfg.logger.Debugf("%swriter finished at version %d", logging.NSStress, version)
	return nil
}

func (h *harness) read(ctx context.Context, id int) error {
	out := make([][]byte, h.cfg.batch)
	for {
		if ctx.Err() != nil {
			return nil
		}
		seen := h.seen[id].Load()
		done := h.done.Load()
		newest := h.reg.NewestVersion()
		if newest <= seen {
			if done && seen >= h.final.Load() {
				h.cfg.logger.Debugf("%sreader %d caught up at version %d", logging.NSStress, id, seen)
				return nil
			}
			time.Sleep(50 * time.Microsecond)
			continue
		}

		to := min(newest, seen+h.cfg.batch)
		if err := h.fetchAndCheck(id, seen, to, out[:to-seen]); err != nil {
			h.failed.Store(true)
			h.cfg.logger.Errorf("%sreader %d: %v", logging.NSStress, id, err)
			return err
		}
		h.seen[id].Store(to)
		h.fetched.Add(to - seen)
		h.reg.SetOldestVersionNeeded(h.minSeen())
	}
}

func (h *harness) fetchAndCheck(id int, from, to uint64, out [][]byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.failed.Load() {
		return errors.New("another reader failed")
	}

	h.reg.GetCommitEntries(from, to, out)
	for i, view := range out {
		version := from + 1 + uint64(i)
		if want := payloadFor(version, h.cfg.maxPayload); !bytes.Equal(view, want) {
			return fmt.Errorf("version %d: fetched %d bytes that do not match the committed payload (%d bytes)",
				version, len(view), len(want))
		}
	}
	if err := h.reg.VerifyCommitEntries(from, to); err != nil {
		return err
	}
	if id == 0 {
		h.cfg.logger.Debugf("%sreader 0 verified (%d, %d]", logging.NSStress, from, to)
	}
	return nil
}

func (h *harness) minSeen() uint64 {
	low := h.seen[0].Load()
	for i := 1; i < len(h.seen); i++ {
		low = min(low, h.seen[i].Load())
	}
	return low
}

// payloadFor returns the deterministic payload committed as version.
func payloadFor(version uint64, maxSize int) []byte {
	size := 1 + int(version*0x9E3779B97F4A7C15>>33)%maxSize
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(version>>uint(8*(i%8))) ^ byte(i)
	}
	return b
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "❌ "+format+"\n", args...)
	os.Exit(1)
}
