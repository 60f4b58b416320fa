//go:build test

package dictionary

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"testing"
	"time"

	"github.com/bastiangx/autocomplete/pkg/suggest"
	"github.com/stretchr/testify/require"
)

var testPrefixes = []string{
	"a", "ab", "abc", "abcd",
	"h", "he", "hel", "hell", "hello",
	"w", "wo", "wor", "worl", "world",
	"p", "pr", "pro", "prog", "program",
	"t", "th", "the", "ther", "there",
	"c", "co", "com", "comp", "computer",
}

var longPatterns = [][]string{
	{"a", "ab", "abc", "abcd", "abcde"},
	{"h", "he", "hel", "hell", "hello"},
	{"p", "pr", "pro", "prog", "progr", "progra", "program"},
	{"c", "co", "com", "comp", "compu", "comput", "computer"},
	{"i", "in", "int", "inte", "inter", "intern", "interna", "internat", "internati", "internatio", "internation", "internationa", "international"},
	{"d", "de", "dev", "deve", "devel", "develo", "develop", "developm", "developme", "developmen", "development"},
}

// lazyCompleter writes a synthetic vocabulary as chunks and loads it in the background.
func lazyCompleter(t *testing.T) (*suggest.Completer, *ChunkLoader) {
	t.Helper()
	dir := t.TempDir()
	stems := []string{"abcde", "hello", "world", "program", "there", "computer", "international", "development"}
	entries := make([]suggest.Entry, 0, len(stems)*500)
	for i, stem := range stems {
		for j := range 500 {
			entries = append(entries, suggest.Entry{Term: fmt.Sprintf("%s%d", stem, j), Score: float64(i*500 + j + 1)})
		}
	}
	_, err := WriteChunkFiles(dir, entries, 1000)
	require.NoError(t, err)

	c := suggest.NewCompleter()
	loader := NewChunkLoader(dir, 0, c)
	require.NoError(t, loader.StartLazyLoading())
	require.Eventually(t, func() bool { return c.Len() == len(entries) }, 5*time.Second, 10*time.Millisecond)
	return c, loader
}

func heapDelta(baseline, final runtime.MemStats) int64 {
	return int64(final.Alloc) - int64(baseline.Alloc)
}

func TestMemoryLeakBasic(t *testing.T) {
	for _, iterations := range []int{100, 500, 1000, 2500} {
		t.Run(fmt.Sprintf("iterations_%d", iterations), func(t *testing.T) {
			runBasicMemoryTest(t, iterations)
		})
	}
}

func TestMemoryLeakConcurrent(t *testing.T) {
	configs := []struct {
		workers             int
		iterationsPerWorker int
	}{
		{workers: 1, iterationsPerWorker: 1000},
		{workers: 2, iterationsPerWorker: 500},
		{workers: 4, iterationsPerWorker: 250},
		{workers: 8, iterationsPerWorker: 125},
	}
	for _, cfg := range configs {
		t.Run(fmt.Sprintf("workers_%d_iter_%d", cfg.workers, cfg.iterationsPerWorker), func(t *testing.T) {
			runConcurrentMemoryTest(t, cfg.workers, cfg.iterationsPerWorker)
		})
	}
}

func TestMemoryStabilityWithEviction(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long-running memory stability test in short mode")
	}

	baselineGoroutines := runtime.NumGoroutine()
	c, loader := lazyCompleter(t)
	rl := NewRuntimeLoader(loader)
	available, err := rl.GetAvailableChunkCount()
	require.NoError(t, err)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)

	maxDelta := int64(0)
	for cycle := range 40 {
		// Shrink and regrow the dictionary while querying.
		require.NoError(t, rl.SetDictionarySize(1+cycle%available))
		for op := range 200 {
			pattern := longPatterns[op%len(longPatterns)]
			c.Complete(pattern[op%len(pattern)], 10)
		}
		if cycle%10 == 0 {
			var m runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&m)
			maxDelta = max(maxDelta, heapDelta(baseline, m))
			t.Logf("cycle=%d terms=%d mem_delta=%d", cycle, c.Len(), heapDelta(baseline, m))
		}
	}

	loader.Stop()
	time.Sleep(50 * time.Millisecond)
	goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
	t.Logf("max_mem_delta=%d goroutine_delta=%d", maxDelta, goroutineDelta)

	if maxDelta > 10*1024*1024 {
		t.Errorf("excessive peak memory usage: %d bytes", maxDelta)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runBasicMemoryTest(t *testing.T, iterations int) {
	baselineGoroutines := runtime.NumGoroutine()
	c, loader := lazyCompleter(t)

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)

	for range iterations {
		for _, prefix := range testPrefixes {
			c.Complete(prefix, 10)
		}
	}

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)
	loader.Stop()
	time.Sleep(20 * time.Millisecond)

	totalOps := iterations * len(testPrefixes)
	memPerOp := float64(heapDelta(baseline, final)) / float64(totalOps)
	goroutineDelta := runtime.NumGoroutine() - baselineGoroutines
	t.Logf("iterations=%d ops=%d mem_per_op=%.2f goroutine_delta=%d", iterations, totalOps, memPerOp, goroutineDelta)

	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
	if goroutineDelta > 2 {
		t.Errorf("goroutine leak detected: %d goroutines leaked", goroutineDelta)
	}
}

func runConcurrentMemoryTest(t *testing.T, workers, iterationsPerWorker int) {
	profile := filepath.Join(t.TempDir(), "concurrent_memory.prof")
	memFile, err := os.Create(profile)
	require.NoError(t, err)
	defer memFile.Close()

	c, loader := lazyCompleter(t)
	defer loader.Stop()

	var baseline runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&baseline)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iterationsPerWorker {
				for _, pattern := range longPatterns {
					for _, prefix := range pattern {
						c.Complete(prefix, 10)
					}
				}
			}
		}()
	}
	wg.Wait()

	var final runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&final)

	opsPerIter := 0
	for _, p := range longPatterns {
		opsPerIter += len(p)
	}
	totalOps := workers * iterationsPerWorker * opsPerIter
	memPerOp := float64(heapDelta(baseline, final)) / float64(totalOps)
	t.Logf("workers=%d total_ops=%d mem_per_op=%.2f", workers, totalOps, memPerOp)

	if err := pprof.WriteHeapProfile(memFile); err != nil {
		t.Errorf("heap profile write failed: %v", err)
	}
	if memPerOp > 1000 {
		t.Errorf("excessive memory usage per operation: %.2f bytes", memPerOp)
	}
}
