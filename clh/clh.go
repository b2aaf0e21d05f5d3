// Package clh implements the CLH queue lock. Arriving goroutines link
// themselves into an implicit queue by swapping the lock's tail pointer
// and then spin on their predecessor's flag, so each waiter busy-waits
// on a cache line that its predecessor writes exactly once at release.
//
// The defining CLH trick is node rotation: on release a goroutine gives
// its own node away to the successor and adopts the predecessor's node,
// which is quiescent by then. Here the rotation runs through a pool, so
// the steady state allocates nothing.
package clh

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/JerryMouseZ/mutexbench/internal/relax"
)

type nodeBody struct {
	locked atomic.Bool
}

// node is padded so that waiters spinning on distinct nodes never share
// a cache line.
type node struct {
	nodeBody
	_ [relax.CacheLine - unsafe.Sizeof(nodeBody{})%relax.CacheLine]byte
}

var nodePool = sync.Pool{New: func() any { return new(node) }}

// Lock is a CLH queue lock. Use NewLock; the zero value is not usable
// because the queue needs a sentinel predecessor.
type Lock struct {
	tail atomic.Pointer[node]
}

// NewLock creates a CLH lock whose queue tail points at an unlocked
// sentinel node.
func NewLock() *Lock {
	l := new(Lock)
	l.tail.Store(new(node))
	return l
}

// Token is the proof of ownership returned by Acquire. It records the
// node the holder published and the predecessor node it adopts on
// release.
type Token struct {
	node *node
	pred *node
}

// Acquire blocks until the calling goroutine holds the lock.
func (l *Lock) Acquire() Token {
	n := nodePool.Get().(*node)
	n.locked.Store(true)

	pred := l.tail.Swap(n)

	var attempts uint
	for pred.locked.Load() {
		attempts = relax.Wait(attempts)
	}
	return Token{node: n, pred: pred}
}

// Release hands the lock to the successor, if any, by clearing the flag
// the successor is spinning on. The predecessor's node is quiescent at
// this point and goes back to the pool, completing the rotation.
func (l *Lock) Release(t Token) {
	t.node.locked.Store(false)
	nodePool.Put(t.pred)
}
