// Package lockbench exposes a family of spin-lock algorithms behind one
// uniform acquire/release surface so a contention benchmark can
// dispatch over them by name.
//
// Each algorithm lives in its own package with a typed token API; this
// package folds those tokens into a value-type Guard so that crossing
// the generic interface allocates nothing.
package lockbench

import (
	"fmt"
	"sync"

	"github.com/JerryMouseZ/mutexbench/clh"
	"github.com/JerryMouseZ/mutexbench/hapax"
	"github.com/JerryMouseZ/mutexbench/mcs"
	"github.com/JerryMouseZ/mutexbench/reciprocating"
	"github.com/JerryMouseZ/mutexbench/twa"
)

// Guard is the opaque proof of ownership returned by Lock.Acquire and
// consumed by exactly one matching Release. Only the field for the
// algorithm that produced it is meaningful.
type Guard struct {
	clh   clh.Token
	mcs   mcs.Token
	twa   twa.Token
	hapax hapax.Token
	rec   reciprocating.Token
}

// Lock is the uniform surface the benchmark harness drives. Acquire
// busy-waits until the caller holds the lock; Release consumes the
// Guard on the same goroutine that produced it.
type Lock interface {
	Acquire() Guard
	Release(Guard)
}

// New constructs a lock of the given kind. Kinds come from ParseKind;
// an out-of-range value is a programmer error and panics.
func New(kind Kind) Lock {
	switch kind {
	case KindMutex:
		return new(mutexLock)
	case KindReciprocating:
		return recLock{reciprocating.NewLock()}
	case KindHapax:
		return hapaxLock{hapax.NewLock()}
	case KindMCS:
		return mcsLock{mcs.NewLock()}
	case KindTWA:
		return twaLock{twa.NewLock()}
	case KindCLH:
		return clhLock{clh.NewLock()}
	}
	panic(fmt.Sprintf("lockbench: unknown lock kind %d", int(kind)))
}

// mutexLock delegates to the runtime's native mutex.
type mutexLock struct {
	mu sync.Mutex
}

func (m *mutexLock) Acquire() Guard { m.mu.Lock(); return Guard{} }
func (m *mutexLock) Release(Guard)  { m.mu.Unlock() }

type clhLock struct{ l *clh.Lock }

func (c clhLock) Acquire() Guard  { return Guard{clh: c.l.Acquire()} }
func (c clhLock) Release(g Guard) { c.l.Release(g.clh) }

type mcsLock struct{ l *mcs.Lock }

func (m mcsLock) Acquire() Guard  { return Guard{mcs: m.l.Acquire()} }
func (m mcsLock) Release(g Guard) { m.l.Release(g.mcs) }

type twaLock struct{ l *twa.Lock }

func (t twaLock) Acquire() Guard  { return Guard{twa: t.l.Acquire()} }
func (t twaLock) Release(g Guard) { t.l.Release(g.twa) }

type hapaxLock struct{ l *hapax.Lock }

func (h hapaxLock) Acquire() Guard  { return Guard{hapax: h.l.Acquire()} }
func (h hapaxLock) Release(g Guard) { h.l.Release(g.hapax) }

type recLock struct{ l *reciprocating.Lock }

func (r recLock) Acquire() Guard  { return Guard{rec: r.l.Acquire()} }
func (r recLock) Release(g Guard) { r.l.Release(g.rec) }
