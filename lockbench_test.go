package lockbench

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEachKindMutualExclusion(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			lock := New(kind)
			const numGoroutines = 16
			const iterations = 2000
			counter := 0
			var wg sync.WaitGroup

			wg.Add(numGoroutines)
			for i := 0; i < numGoroutines; i++ {
				go func() {
					defer wg.Done()
					for _i := 0; _i < iterations; _i++ {
						guard := lock.Acquire()
						counter++
						lock.Release(guard)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, numGoroutines*iterations, counter)
		})
	}
}

func TestNewEachKindSequential(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind.String(), func(t *testing.T) {
			lock := New(kind)
			counter := 0
			for _i := 0; _i < 10_000; _i++ {
				guard := lock.Acquire()
				counter++
				lock.Release(guard)
			}
			assert.Equal(t, 10_000, counter)
		})
	}
}

func TestNewUnknownKindPanics(t *testing.T) {
	assert.Panics(t, func() { New(Kind(42)) })
}

// The benchmarks below pit every algorithm against the same workloads
// so a single `go test -bench .` produces the comparison table.

func BenchmarkUncontended(b *testing.B) {
	for _, kind := range Kinds() {
		b.Run(kind.String(), func(b *testing.B) {
			lock := New(kind)
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				guard := lock.Acquire()
				lock.Release(guard)
			}
		})
	}
}

func BenchmarkContended(b *testing.B) {
	for _, kind := range Kinds() {
		b.Run(kind.String(), func(b *testing.B) {
			lock := New(kind)
			shared := 0
			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					guard := lock.Acquire()
					shared++
					lock.Release(guard)
				}
			})
		})
	}
}

func BenchmarkHeavyContention(b *testing.B) {
	for _, kind := range Kinds() {
		b.Run(kind.String(), func(b *testing.B) {
			lock := New(kind)
			shared := 0
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					guard := lock.Acquire()
					// Simulate some work inside critical section.
					for i := 0; i < 100; i++ {
						shared++
					}
					lock.Release(guard)
				}
			})
		})
	}
}
