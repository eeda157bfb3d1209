package commitlog

// statistics.go implements the Statistics interface for collecting commit-log metrics.

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// TickerType represents different types of counters.
type TickerType int

const (
	// TickerCommitsAdded is the count of commit entries stored.
	TickerCommitsAdded TickerType = iota
	// TickerCommitBytesAdded is the total payload bytes stored.
	TickerCommitBytesAdded
	// TickerCommitsReleased is the count of commit entries freed by a watermark advance or reset.
	TickerCommitsReleased
	// TickerCommitBytesReleased is the total payload bytes freed.
	TickerCommitBytesReleased
	// TickerEntriesFetched is the count of views handed out by range fetches.
	TickerEntriesFetched
	// TickerBytesFetched is the total payload bytes covered by handed-out views.
	TickerBytesFetched
	// TickerCompactions is the count of backing-storage compactions.
	TickerCompactions
	// TickerFullReleases is the count of watermark advances that emptied the registry.
	TickerFullReleases
	// TickerResets is the count of hard resets.
	TickerResets
	// TickerTransactionsRolledBack is the count of collector rollbacks.
	TickerTransactionsRolledBack
	// TickerPayloadsRecycled is the count of released payloads returned to the buffer pool.
	TickerPayloadsRecycled

	// TickerEnumMax is the maximum ticker type for sizing arrays.
	TickerEnumMax
)

var tickerNames = [TickerEnumMax]string{
	"commitlog.commits.added",
	"commitlog.commit.bytes.added",
	"commitlog.commits.released",
	"commitlog.commit.bytes.released",
	"commitlog.entries.fetched",
	"commitlog.bytes.fetched",
	"commitlog.compactions",
	"commitlog.full.releases",
	"commitlog.resets",
	"commitlog.transactions.rolled.back",
	"commitlog.payloads.recycled",
}

// String returns the name of the ticker type.
func (t TickerType) String() string {
	if t >= 0 && t < TickerEnumMax {
		return tickerNames[t]
	}
	return "unknown"
}

// HistogramType represents different types of histograms.
type HistogramType int

const (
	// HistogramBytesPerCommit is the distribution of payload sizes.
	HistogramBytesPerCommit HistogramType = iota
	// HistogramEntriesPerFetch is the distribution of range fetch lengths.
	HistogramEntriesPerFetch
	// HistogramCompactionEntriesMoved is the distribution of live entries moved per compaction.
	HistogramCompactionEntriesMoved

	// HistogramEnumMax is the maximum histogram type for sizing arrays.
	HistogramEnumMax
)

var histogramNames = [HistogramEnumMax]string{
	"commitlog.bytes.per.commit",
	"commitlog.entries.per.fetch",
	"commitlog.compaction.entries.moved",
}

// String returns the name of the histogram type.
func (h HistogramType) String() string {
	if h >= 0 && h < HistogramEnumMax {
		return histogramNames[h]
	}
	return "unknown"
}

// HistogramData contains histogram statistics.
type HistogramData struct {
	Average float64
	Max     float64
	Min     float64
	Count   uint64
	Sum     uint64
}

// Statistics collects and reports commit-log metrics.
// Implementations must be safe for concurrent use; registries record from under their lock.
type Statistics interface {
	// GetTickerCount returns the current value of a ticker.
	GetTickerCount(tickerType TickerType) uint64

	// RecordTick increments a ticker by count.
	RecordTick(tickerType TickerType, count uint64)

	// SetTickerCount sets the ticker to a specific value.
	SetTickerCount(tickerType TickerType, count uint64)

	// GetHistogramData returns histogram statistics.
	GetHistogramData(histogramType HistogramType) HistogramData

	// Measure records a value to a histogram.
	Measure(histogramType HistogramType, value uint64)

	// Reset clears all statistics.
	Reset()

	// String returns a formatted string of all statistics.
	String() string
}

// statisticsImpl is the default implementation of Statistics.
type statisticsImpl struct {
	tickers    [TickerEnumMax]atomic.Uint64
	histograms [HistogramEnumMax]atomic.Pointer[histogramImpl]
}

type histogramImpl struct {
	min   atomic.Uint64
	max   atomic.Uint64
	sum   atomic.Uint64
	count atomic.Uint64
}

func newHistogram() *histogramImpl {
	h := &histogramImpl{}
	h.min.Store(^uint64(0))
	return h
}

// NewStatistics creates a new Statistics instance.
func NewStatistics() Statistics {
	s := &statisticsImpl{}
	for i := range s.histograms {
		s.histograms[i].Store(newHistogram())
	}
	return s
}

func (s *statisticsImpl) GetTickerCount(tickerType TickerType) uint64 {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return 0
	}
	return s.tickers[tickerType].Load()
}

func (s *statisticsImpl) RecordTick(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Add(count)
}

func (s *statisticsImpl) SetTickerCount(tickerType TickerType, count uint64) {
	if tickerType < 0 || tickerType >= TickerEnumMax {
		return
	}
	s.tickers[tickerType].Store(count)
}

func (s *statisticsImpl) GetHistogramData(histogramType HistogramType) HistogramData {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return HistogramData{}
	}

	h := s.histograms[histogramType].Load()
	count := h.count.Load()
	if count == 0 {
		return HistogramData{}
	}

	sum := h.sum.Load()
	return HistogramData{
		Count:   count,
		Sum:     sum,
		Min:     float64(h.min.Load()),
		Max:     float64(h.max.Load()),
		Average: float64(sum) / float64(count),
	}
}

func (s *statisticsImpl) Measure(histogramType HistogramType, value uint64) {
	if histogramType < 0 || histogramType >= HistogramEnumMax {
		return
	}

	h := s.histograms[histogramType].Load()
	h.count.Add(1)
	h.sum.Add(value)

	for {
		old := h.min.Load()
		if value >= old || h.min.CompareAndSwap(old, value) {
			break
		}
	}
	for {
		old := h.max.Load()
		if value <= old || h.max.CompareAndSwap(old, value) {
			break
		}
	}
}

func (s *statisticsImpl) Reset() {
	for i := range s.tickers {
		s.tickers[i].Store(0)
	}
	for i := range s.histograms {
		s.histograms[i].Store(newHistogram())
	}
}

func (s *statisticsImpl) String() string {
	var b strings.Builder

	b.WriteString("TICKERS:\n")
	for i := range TickerEnumMax {
		if count := s.GetTickerCount(i); count > 0 {
			fmt.Fprintf(&b, "  %s : %d\n", i, count)
		}
	}

	b.WriteString("\nHISTOGRAMS:\n")
	for i := range HistogramEnumMax {
		data := s.GetHistogramData(i)
		if data.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "  %s :\n", i)
		fmt.Fprintf(&b, "    Count: %d\n", data.Count)
		fmt.Fprintf(&b, "    Avg: %.2f\n", data.Average)
		fmt.Fprintf(&b, "    Min: %.2f\n", data.Min)
		fmt.Fprintf(&b, "    Max: %.2f\n", data.Max)
	}

	return b.String()
}

// recordTick and measure tolerate a nil Statistics so call sites stay unconditional.
func recordTick(s Statistics, tickerType TickerType, count uint64) {
	if s != nil {
		s.RecordTick(tickerType, count)
	}
}

func measure(s Statistics, histogramType HistogramType, value uint64) {
	if s != nil {
		s.Measure(histogramType, value)
	}
}
