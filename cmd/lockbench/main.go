// Command lockbench drives one lock algorithm under contention and
// reports throughput and handoff latency as key: value lines on stdout.
//
// Each worker loops: acquire, burn the critical-section iterations,
// increment a shared counter, release, burn the outside iterations.
// In-critical-section time and unlock-to-next-lock time are sampled at
// a configurable stride.
package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	lockbench "github.com/JerryMouseZ/mutexbench"
)

type config struct {
	lockName     string
	threads      int
	iterations   uint64
	warmupIters  uint64
	criticalIter uint64
	outsideIter  uint64
	sampleStride uint64
}

func parseArgs() (config, lockbench.Kind) {
	var cfg config
	pflag.StringVar(&cfg.lockName, "lock", "mutex", "lock algorithm to benchmark")
	pflag.IntVar(&cfg.threads, "threads", 4, "number of worker goroutines")
	pflag.Uint64Var(&cfg.iterations, "iterations", 1_000_000, "iterations per worker")
	pflag.Uint64Var(&cfg.warmupIters, "warmup-iterations", 0, "warmup iterations per worker")
	pflag.Uint64Var(&cfg.criticalIter, "critical-iters", 100, "loop iterations inside the critical section")
	pflag.Uint64Var(&cfg.outsideIter, "outside-iters", 100, "loop iterations outside the lock")
	pflag.Uint64Var(&cfg.sampleStride, "sample-stride", 1, "sample timing every Nth iteration")
	pflag.Parse()

	if cfg.threads <= 0 {
		fmt.Fprintln(os.Stderr, "--threads must be > 0")
		os.Exit(1)
	}
	if cfg.sampleStride == 0 {
		fmt.Fprintln(os.Stderr, "--sample-stride must be > 0")
		os.Exit(1)
	}

	kind, ok := lockbench.ParseKind(cfg.lockName)
	if !ok {
		names := make([]string, 0, len(lockbench.Kinds()))
		for _, k := range lockbench.Kinds() {
			names = append(names, k.String())
		}
		fmt.Fprintf(os.Stderr, "unknown lock %q (valid: %s)\n",
			cfg.lockName, strings.Join(names, ", "))
		os.Exit(1)
	}
	return cfg, kind
}

// burn spins for iters rounds of a cheap LCG so the loop cannot be
// optimized away.
func burn(iters uint64) uint64 {
	var x uint64
	for i := uint64(0); i < iters; i++ {
		x = x*1664525 + 1013904223 + i
	}
	return x
}

var burnSink atomic.Uint64

func main() {
	cfg, kind := parseArgs()
	lock := lockbench.New(kind)

	var (
		protectedCounter uint64
		totalOps         atomic.Uint64
		totalHoldNanos   atomic.Int64
		totalHoldSamples atomic.Uint64
		totalGapNanos    atomic.Int64
		totalGapSamples  atomic.Uint64
		warmupDone       atomic.Int64
		measureStart     atomic.Bool
	)

	var wg sync.WaitGroup
	wg.Add(cfg.threads)
	for t := 0; t < cfg.threads; t++ {
		go func() {
			defer wg.Done()

			var sink uint64
			for i := uint64(0); i < cfg.warmupIters; i++ {
				g := lock.Acquire()
				sink += burn(cfg.criticalIter)
				lock.Release(g)
				sink += burn(cfg.outsideIter)
			}

			warmupDone.Add(1)
			for !measureStart.Load() {
			}

			var (
				holdNanos   int64
				holdSamples uint64
				gapNanos    int64
				gapSamples  uint64
				lastUnlock  time.Time
			)
			for i := uint64(0); i < cfg.iterations; i++ {
				sampleHold := i%cfg.sampleStride == 0
				// The handoff gap pairs a sampled unlock with the very
				// next lock, so it never spans unsampled iterations.
				sampleGap := i > 0 && (i-1)%cfg.sampleStride == 0

				g := lock.Acquire()
				var afterLock time.Time
				if sampleHold || sampleGap {
					afterLock = time.Now()
					if sampleGap {
						gapNanos += afterLock.Sub(lastUnlock).Nanoseconds()
						gapSamples++
					}
				}
				sink += burn(cfg.criticalIter)
				protectedCounter++
				if sampleHold {
					beforeUnlock := time.Now()
					holdNanos += beforeUnlock.Sub(afterLock).Nanoseconds()
					holdSamples++
					lastUnlock = beforeUnlock
				}
				lock.Release(g)

				sink += burn(cfg.outsideIter)
				totalOps.Add(1)
			}

			burnSink.Add(sink)
			totalHoldNanos.Add(holdNanos)
			totalHoldSamples.Add(holdSamples)
			totalGapNanos.Add(gapNanos)
			totalGapSamples.Add(gapSamples)
		}()
	}

	for warmupDone.Load() < int64(cfg.threads) {
	}
	start := time.Now()
	measureStart.Store(true)
	wg.Wait()
	elapsed := time.Since(start)

	ops := totalOps.Load()
	elapsedSeconds := elapsed.Seconds()
	throughput := float64(ops) / elapsedSeconds
	var avgHoldNs, avgGapNs float64
	if s := totalHoldSamples.Load(); s != 0 {
		avgHoldNs = float64(totalHoldNanos.Load()) / float64(s)
	}
	if s := totalGapSamples.Load(); s != 0 {
		avgGapNs = float64(totalGapNanos.Load()) / float64(s)
	}

	fmt.Printf("=== Lock Benchmark (%s) ===\n", kind)
	fmt.Printf("threads: %d\n", cfg.threads)
	fmt.Printf("iterations_per_thread: %d\n", cfg.iterations)
	fmt.Printf("warmup_iterations_per_thread: %d\n", cfg.warmupIters)
	fmt.Printf("critical_iters: %d\n", cfg.criticalIter)
	fmt.Printf("outside_iters: %d\n", cfg.outsideIter)
	fmt.Printf("total_operations: %d\n", ops)
	fmt.Printf("protected_counter: %d\n", protectedCounter)
	fmt.Printf("elapsed_seconds: %.6f\n", elapsedSeconds)
	fmt.Printf("throughput_ops_per_sec: %.2f\n", throughput)
	fmt.Printf("avg_lock_hold_ns: %.2f\n", avgHoldNs)
	fmt.Printf("avg_unlock_to_next_lock_ns: %.2f\n", avgGapNs)
}
