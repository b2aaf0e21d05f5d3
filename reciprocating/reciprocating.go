// Package reciprocating implements a stack-based lock that hands whole
// segments of waiters from holder to holder.
//
// Arriving goroutines push themselves onto an implicit LIFO by swapping
// the lock's arrivals word. A releasing holder passes the entire
// accumulated segment to its successor in a single gate write; the
// successor inherits responsibility for unwinding the segment in LIFO
// order. Acquisition order alternates as segments flip, trading strict
// fairness for doing no list maintenance while holding the lock.
//
// The arrivals word carries three disjoint states:
//
//	nil          -> unlocked
//	lockedEmpty  -> locked, arrival stack empty
//	e            -> locked, e is the newest arrival
//
// C-family renditions of this lock steal a pointer tag bit for the
// middle state; here the sentinel is a dedicated static element and tag
// stripping becomes an identity test.
package reciprocating

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/JerryMouseZ/mutexbench/internal/relax"
)

type waitElementBody struct {
	gate atomic.Pointer[waitElement]
}

type waitElement struct {
	waitElementBody
	_ [relax.CacheLine - unsafe.Sizeof(atomic.Pointer[waitElement]{})%relax.CacheLine]byte
}

// lockedEmpty marks "locked, no waiters". It is never enqueued and its
// gate is never written.
var lockedEmpty = new(waitElement)

var elementPool = sync.Pool{New: func() any { return new(waitElement) }}

// Lock implements the reciprocating lock. The zero value is an
// unlocked lock.
type Lock struct {
	arrivals atomic.Pointer[waitElement]
}

// NewLock creates a new reciprocating lock.
func NewLock() *Lock { return new(Lock) }

// Token is the proof of ownership returned by Acquire. succ is the
// head of the segment to hand off (nil if none), eos marks the
// segment's end, self is the holder's own element.
type Token struct {
	succ *waitElement
	eos  *waitElement
	self *waitElement
}

// Acquire blocks until the calling goroutine holds the lock.
func (l *Lock) Acquire() Token {
	e := elementPool.Get().(*waitElement)
	e.gate.Store(nil)

	t := Token{self: e, eos: e} // fast-path assumption

	tail := l.arrivals.Swap(e)
	if tail != nil {
		// Coerce the locked-empty sentinel to "no successor".
		if tail != lockedEmpty {
			t.succ = tail
		}

		// Contended wait: the gate write both wakes us and delivers
		// the end-of-segment marker.
		for {
			if eos := e.gate.Load(); eos != nil {
				t.eos = eos
				break
			}
			runtime.Gosched()
		}

		if t.succ == t.eos {
			// Our recorded successor is the segment terminator, an
			// element whose episode already completed. Nothing to wake.
			t.succ = nil
			t.eos = lockedEmpty
		}
	}

	return t
}

// Release hands the lock to the successor segment if one exists, else
// returns the lock to the unheld state, adopting any arrivals that
// slipped in meanwhile.
func (l *Lock) Release(t Token) {
	if t.succ != nil {
		// Hand the whole accumulated segment to the successor; it will
		// drain the rest in LIFO order on its own release.
		t.succ.gate.Store(t.eos)
		elementPool.Put(t.self)
		return
	}

	// succ == nil means eos is lockedEmpty or our own element.
	if l.arrivals.CompareAndSwap(t.eos, nil) {
		elementPool.Put(t.self)
		return
	}

	// New arrivals exist. Take ownership of the current stack while
	// leaving the lock marked held with no published tail, then hand
	// our eos to the head of that stack.
	w := l.arrivals.Swap(lockedEmpty)
	if w == nil || w == lockedEmpty || w == t.self {
		panic("reciprocating: corrupt arrivals stack")
	}
	w.gate.Store(t.eos)
	elementPool.Put(t.self)
}
