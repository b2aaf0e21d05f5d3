// Package hapax implements a visible-waiter handoff lock.
//
// Every acquisition consumes a fresh "hapax" identity, a nonzero 64-bit
// value unique to that single (goroutine, lock, episode). An arriving
// goroutine stamps the lock's ingress word with its hapax and receives
// the predecessor's hapax in return; if the predecessor has not yet
// departed, the waiter publishes the predecessor's hapax into a hashed
// parking slot and spins there. The releaser clears that slot to hand
// over directly, or falls back to a global egress stamp when the slot
// raced or collided. Because the hapax doubles as ingress stamp and
// slot sentinel, one CAS on the slot word detects every relevant race.
package hapax

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/JerryMouseZ/mutexbench/internal/relax"
)

// slotCount is the size of the process-wide parking array. Must be a
// power of two.
const slotCount = 4096

type slotBody struct {
	visibleWaiter atomic.Uint64
}

type slot struct {
	slotBody
	_ [relax.CacheLine - unsafe.Sizeof(slotBody{})%relax.CacheLine]byte
}

// waitingArray is shared by every hapax lock in the process. A slot
// holds 0 when empty, otherwise the hapax of the predecessor some
// waiter is parked behind. Correctness never depends on avoiding
// collisions, only on detecting them.
var waitingArray [slotCount]slot

// Hapax identities are carved out of one process-wide counter in
// blocks, so the hot path touches shared state only once per 2^16
// acquisitions. Zero is reserved as the empty-slot sentinel, and block
// numbering starts at 1, so no block ever contains zero.
const blockBits = 16

var blockAllocator atomic.Uint64

type generator struct {
	next  uint64
	limit uint64
}

var generatorPool = sync.Pool{New: func() any { return new(generator) }}

// nextHapax returns a fresh, nonzero, process-unique identity.
func nextHapax() uint64 {
	g := generatorPool.Get().(*generator)
	if g.next == g.limit {
		base := blockAllocator.Add(1) << blockBits
		g.next, g.limit = base, base+1<<blockBits
	}
	h := g.next
	g.next++
	generatorPool.Put(g)
	return h
}

type lockBody struct {
	arrive atomic.Uint64
}

// Lock implements the hapax visible-waiter lock. Use NewLock; each
// instance needs its own salt for slot selection.
//
// arrive and depart sit on separate cache lines: arrivals hammer one,
// the holder and fallback waiters the other.
type Lock struct {
	lockBody
	_      [relax.CacheLine - unsafe.Sizeof(lockBody{})%relax.CacheLine]byte
	depart atomic.Uint64
	_      [relax.CacheLine - unsafe.Sizeof(atomic.Uint64{})%relax.CacheLine]byte
	salt   uint32
}

var saltCounter atomic.Uint32

// NewLock creates a new hapax lock.
func NewLock() *Lock {
	// Distinct locks get distinct salts so they spread across the
	// shared parking array instead of piling onto the same slots.
	return &Lock{salt: saltCounter.Add(1) * 0x9e3779b9}
}

// toSlot picks the parking slot for a hapax on this lock.
func (l *Lock) toSlot(h uint64) *slot {
	ix := ((l.salt + uint32(h>>blockBits)) * 17) & (slotCount - 1)
	return &waitingArray[ix]
}

// Token is the proof of ownership returned by Acquire; it carries the
// acquisition's hapax identity.
type Token struct {
	hapax uint64
}

// Acquire blocks until the calling goroutine holds the lock.
func (l *Lock) Acquire() Token {
	h := nextHapax()
	pred := l.arrive.Swap(h)

	if l.depart.Load() != pred {
		s := l.toSlot(pred)
		switch {
		case !s.visibleWaiter.CompareAndSwap(0, pred):
			// Collision on the slot; wait via the global depart stamp.
			for l.depart.Load() != pred {
				runtime.Gosched()
			}
		case l.depart.Load() == pred:
			// Raced with the release; take back the slot and proceed.
			s.visibleWaiter.CompareAndSwap(pred, 0)
		default:
			// Preferred path: we are visible, wait to be handed over
			// through the slot.
			for s.visibleWaiter.Load() == pred {
				runtime.Gosched()
			}
		}
	}

	return Token{hapax: h}
}

// Release hands the lock over. If a waiter made itself visible in the
// slot our hapax hashes to, clearing the slot is the wake-up; otherwise
// the depart stamp satisfies any waiter on the fallback path.
func (l *Lock) Release(t Token) {
	h := t.hapax
	if h == 0 {
		panic("hapax: release of zero token")
	}

	s := l.toSlot(h)
	if s.visibleWaiter.CompareAndSwap(h, 0) {
		return
	}

	l.depart.Store(h)

	// A waiter may have parked between the CAS above and the depart
	// store; clear the slot so it is back to the empty sentinel either
	// way.
	s.visibleWaiter.CompareAndSwap(h, 0)
}
