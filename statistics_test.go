package commitlog

// statistics_test.go implements tests for statistics.

import (
	"strings"
	"sync"
	"testing"
)

func TestStatisticsBasic(t *testing.T) {
	stats := NewStatistics()

	stats.RecordTick(TickerCommitBytesAdded, 100)
	stats.RecordTick(TickerCommitBytesAdded, 50)
	stats.RecordTick(TickerCommitsAdded, 1)

	if got := stats.GetTickerCount(TickerCommitBytesAdded); got != 150 {
		t.Errorf("TickerCommitBytesAdded = %d, want 150", got)
	}
	if got := stats.GetTickerCount(TickerCommitsAdded); got != 1 {
		t.Errorf("TickerCommitsAdded = %d, want 1", got)
	}
}

func TestStatisticsSetTicker(t *testing.T) {
	stats := NewStatistics()

	stats.SetTickerCount(TickerBytesFetched, 1000)
	if got := stats.GetTickerCount(TickerBytesFetched); got != 1000 {
		t.Errorf("TickerBytesFetched = %d, want 1000", got)
	}

	stats.SetTickerCount(TickerBytesFetched, 500)
	if got := stats.GetTickerCount(TickerBytesFetched); got != 500 {
		t.Errorf("TickerBytesFetched = %d, want 500", got)
	}
}

func TestStatisticsHistogram(t *testing.T) {
	stats := NewStatistics()

	stats.Measure(HistogramBytesPerCommit, 100)
	stats.Measure(HistogramBytesPerCommit, 200)
	stats.Measure(HistogramBytesPerCommit, 300)

	data := stats.GetHistogramData(HistogramBytesPerCommit)

	if data.Count != 3 {
		t.Errorf("Count = %d, want 3", data.Count)
	}
	if data.Sum != 600 {
		t.Errorf("Sum = %d, want 600", data.Sum)
	}
	if data.Min != 100 {
		t.Errorf("Min = %f, want 100", data.Min)
	}
	if data.Max != 300 {
		t.Errorf("Max = %f, want 300", data.Max)
	}
	if data.Average != 200 {
		t.Errorf("Average = %f, want 200", data.Average)
	}
}

func TestStatisticsInvalidTypes(t *testing.T) {
	stats := NewStatistics()

	stats.RecordTick(TickerEnumMax, 1)
	stats.RecordTick(-1, 1)
	stats.SetTickerCount(TickerEnumMax, 1)
	stats.Measure(HistogramEnumMax, 1)

	if got := stats.GetTickerCount(TickerEnumMax); got != 0 {
		t.Errorf("GetTickerCount(invalid) = %d, want 0", got)
	}
	if got := stats.GetHistogramData(-1); got.Count != 0 {
		t.Errorf("GetHistogramData(invalid).Count = %d, want 0", got.Count)
	}
}

func TestStatisticsReset(t *testing.T) {
	stats := NewStatistics()

	stats.RecordTick(TickerCompactions, 3)
	stats.Measure(HistogramEntriesPerFetch, 10)
	stats.Reset()

	if got := stats.GetTickerCount(TickerCompactions); got != 0 {
		t.Errorf("TickerCompactions after reset = %d, want 0", got)
	}
	if got := stats.GetHistogramData(HistogramEntriesPerFetch); got.Count != 0 {
		t.Errorf("histogram count after reset = %d, want 0", got.Count)
	}
}

func TestStatisticsConcurrent(t *testing.T) {
	stats := NewStatistics()

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for i := range 1000 {
				stats.RecordTick(TickerEntriesFetched, 1)
				stats.Measure(HistogramEntriesPerFetch, uint64(i))
			}
		})
	}
	wg.Wait()

	if got := stats.GetTickerCount(TickerEntriesFetched); got != 8000 {
		t.Errorf("TickerEntriesFetched = %d, want 8000", got)
	}
	data := stats.GetHistogramData(HistogramEntriesPerFetch)
	if data.Count != 8000 || data.Min != 0 || data.Max != 999 {
		t.Errorf("histogram = %+v", data)
	}
}

func TestStatisticsString(t *testing.T) {
	stats := NewStatistics()
	stats.RecordTick(TickerCommitsAdded, 1234)
	stats.Measure(HistogramBytesPerCommit, 7)

	out := stats.String()
	for _, want := range []string{
		"commitlog.commits.added : 1234",
		"commitlog.bytes.per.commit :",
		"Count: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "commitlog.resets") {
		t.Errorf("String() should omit zero tickers:\n%s", out)
	}
}

func TestTickerAndHistogramNames(t *testing.T) {
	seen := make(map[string]bool)
	for i := range TickerEnumMax {
		name := i.String()
		if !strings.HasPrefix(name, "commitlog.") || seen[name] {
			t.Errorf("ticker %d has bad or duplicate name %q", i, name)
		}
		seen[name] = true
	}
	for i := range HistogramEnumMax {
		name := i.String()
		if !strings.HasPrefix(name, "commitlog.") || seen[name] {
			t.Errorf("histogram %d has bad or duplicate name %q", i, name)
		}
		seen[name] = true
	}
	if TickerEnumMax.String() != "unknown" || HistogramEnumMax.String() != "unknown" {
		t.Error("out-of-range types should be named unknown")
	}
}
