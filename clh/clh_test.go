package clh

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSequential(t *testing.T) {
	lock := NewLock()
	counter := 0

	for _i := 0; _i < 1_000_000; _i++ {
		token := lock.Acquire()
		counter++
		lock.Release(token)
	}

	assert.Equal(t, 1_000_000, counter)
}

func TestLockConcurrentAccess(t *testing.T) {
	lock := NewLock()
	const numGoroutines = 100
	const iterations = 500
	counter := 0
	var wg sync.WaitGroup

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for _i := 0; _i < iterations; _i++ {
				token := lock.Acquire()
				counter++
				lock.Release(token)
			}
		}()
	}
	wg.Wait()

	expected := numGoroutines * iterations
	assert.Equal(t, expected, counter, "Expected counter to be %d, got %d", expected, counter)
}

// TestLockAlternation drives two goroutines in strict alternation so
// every acquisition has a predecessor and the node rotation is
// exercised on each handoff.
func TestLockAlternation(t *testing.T) {
	lock := NewLock()
	const iterations = 100_000
	turn := 0
	var wg sync.WaitGroup

	wg.Add(2)
	for id := 0; id < 2; id++ {
		go func(id int) {
			defer wg.Done()
			done := 0
			for done < iterations {
				token := lock.Acquire()
				if turn%2 == id {
					turn++
					done++
				}
				lock.Release(token)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2*iterations, turn)
}

func TestLockTokenCarriesDistinctNodes(t *testing.T) {
	lock := NewLock()

	token := lock.Acquire()
	assert.NotNil(t, token.node)
	assert.NotNil(t, token.pred)
	assert.NotSame(t, token.node, token.pred)
	lock.Release(token)
}

func BenchmarkLockUncontended(b *testing.B) {
	lock := NewLock()
	for i := 0; i < b.N; i++ {
		token := lock.Acquire()
		lock.Release(token)
	}
}

func BenchmarkLockContended(b *testing.B) {
	lock := NewLock()
	shared := 0
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			token := lock.Acquire()
			shared++
			lock.Release(token)
		}
	})
}
