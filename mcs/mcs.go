// Package mcs implements the Mellor-Crummey Scott (MCS) lock, a
// scalable FIFO queue-based spin lock.
//
// An MCS lock provides several advantages over traditional spin locks:
//   - FIFO ordering ensures fair lock acquisition
//   - Each goroutine spins on its own queue node, reducing memory
//     contention and cache invalidation
//   - Handoff is a single store into the successor's node
//
// Queue nodes are managed internally: Acquire draws one from a pool and
// the matching Release returns it once no other goroutine can touch it.
package mcs

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/JerryMouseZ/mutexbench/internal/relax"
)

type qnodeBody struct {
	next    atomic.Pointer[qnode]
	waiting atomic.Bool
}

type qnode struct {
	qnodeBody
	_ [relax.CacheLine - (unsafe.Sizeof(atomic.Pointer[qnode]{})+unsafe.Sizeof(atomic.Bool{}))%relax.CacheLine]byte
}

var qnodePool = sync.Pool{New: func() any { return new(qnode) }}

// Lock represents the MCS lock. The zero value is an unlocked lock.
type Lock struct {
	tail atomic.Pointer[qnode]
}

// NewLock creates a new MCS lock.
func NewLock() *Lock { return new(Lock) }

// Token is the proof of ownership returned by Acquire; it carries the
// holder's queue node.
type Token struct {
	node *qnode
}

// Acquire blocks until the calling goroutine holds the lock.
func (l *Lock) Acquire() Token {
	n := qnodePool.Get().(*qnode)
	n.next.Store(nil)
	// The flag must be up before the node is visible to the
	// predecessor, otherwise its signal could be lost.
	n.waiting.Store(true)

	pred := l.tail.Swap(n)
	if pred == nil { // No predecessor, lock acquired.
		return Token{node: n}
	}

	pred.next.Store(n) // Link in behind the predecessor.

	// Spin on our own node until the predecessor signals us.
	var attempts uint
	for n.waiting.Load() {
		attempts = relax.Wait(attempts)
	}
	return Token{node: n}
}

// TryLock attempts to acquire the lock without blocking.
// Returns an acquired Token and true on success.
func (l *Lock) TryLock() (Token, bool) {
	n := qnodePool.Get().(*qnode)
	n.next.Store(nil)
	if l.tail.CompareAndSwap(nil, n) {
		return Token{node: n}, true
	}
	qnodePool.Put(n)
	return Token{}, false
}

// Release hands the lock to the successor if one exists, else returns
// the lock to the unheld state.
func (l *Lock) Release(t Token) {
	n := t.node
	succ := n.next.Load()
	if succ == nil {
		// No one visibly waiting? Try to close the queue.
		if l.tail.CompareAndSwap(n, nil) {
			qnodePool.Put(n)
			return
		}

		// A new waiter swapped the tail but has not linked in yet.
		// The window is short; spin until the link shows up.
		var attempts uint
		for {
			if succ = n.next.Load(); succ != nil {
				break
			}
			attempts = relax.Wait(attempts)
		}
	}

	succ.waiting.Store(false) // Signal successor.
	qnodePool.Put(n)
}

// IsFree returns true if the lock is currently free.
func (l *Lock) IsFree() bool { return l.tail.Load() == nil }
