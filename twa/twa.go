// Package twa provides a fair mutual exclusion lock implementation
// using a ticket-based queuing system with a hashed waiting array
// (TWA). Lock acquisition is served strictly in ticket order, like a
// plain ticket lock. Goroutines that are about to be granted spin on
// the shared grant counter alone. Waiters further back park on a slot
// of a hashed waiting array and wait for that slot's sequence number to
// change, re-reading the grant counter on each turn of that wait so
// they notice when they come within range.
//
// Each release publishes the next grant and then bumps the sequence of
// the slot where the waiter due to move up must have parked. Hash
// collisions only cause spurious wake-ups; the woken waiter re-checks
// the grant counter, so a wake-up is never lost.
package twa

import (
	"sync/atomic"
	"unsafe"

	"github.com/JerryMouseZ/mutexbench/internal/relax"
)

const (
	// waitingArraySize is the number of parking slots. Must be a power
	// of two so slot selection is a mask.
	waitingArraySize = 4096

	// longTermThreshold separates the two waiting regimes: a waiter
	// whose ticket is within this distance of the grant spins on the
	// grant counter directly, anyone further back parks on a slot.
	longTermThreshold = 1
)

type waitSlotBody struct {
	sequence atomic.Uint32
}

type waitSlot struct {
	waitSlotBody
	_ [relax.CacheLine - unsafe.Sizeof(waitSlotBody{})%relax.CacheLine]byte
}

// waitingArray is shared by every TWA lock in the process. Slots carry
// no lock identity, only change notifications, so cross-lock collisions
// are as harmless as same-lock ones.
var waitingArray [waitingArraySize]waitSlot

// hashTicket spreads consecutive tickets across the waiting array.
func hashTicket(ticket uint64) uint32 {
	ticket ^= ticket >> 33
	ticket *= 0xff51afd7ed558ccd
	ticket ^= ticket >> 33
	ticket *= 0xc4ceb9fe1a85ec53
	ticket ^= ticket >> 33
	return uint32(ticket) & (waitingArraySize - 1)
}

type lockBody struct {
	nextTicket atomic.Uint64
}

// Lock implements the TWA lock. The zero value is an unlocked lock.
//
// The two counters live on separate cache lines: nextTicket is hammered
// by arriving goroutines, grant by the releaser and the front waiter.
type Lock struct {
	lockBody
	_     [relax.CacheLine - unsafe.Sizeof(lockBody{})%relax.CacheLine]byte
	grant atomic.Uint64
	_     [relax.CacheLine - unsafe.Sizeof(atomic.Uint64{})%relax.CacheLine]byte
}

// NewLock creates a new TWA lock.
func NewLock() *Lock { return new(Lock) }

// Token is the proof of ownership returned by Acquire; it carries the
// holder's ticket.
type Token struct {
	ticket uint64
}

// Acquire blocks until the calling goroutine holds the lock.
func (l *Lock) Acquire() Token {
	ticket := l.nextTicket.Add(1) - 1 // Get our ticket.

	grant := l.grant.Load()
	if grant == ticket {
		return Token{ticket: ticket} // Uncontended fast path.
	}

	slot := &waitingArray[hashTicket(ticket)]
	sequence := slot.sequence.Load()

	// Long-term wait: watch our slot's sequence number, re-checking the
	// grant distance on every turn. The releaser that moves us within
	// the threshold bumps exactly this slot.
	for ticket-grant > longTermThreshold {
		var attempts uint
		for slot.sequence.Load() == sequence {
			attempts = relax.Wait(attempts)
			grant = l.grant.Load()
			if ticket-grant <= longTermThreshold {
				break
			}
		}
		sequence = slot.sequence.Load()
		grant = l.grant.Load()
	}

	// Short-term wait: we are next (or nearly so), spin on the grant
	// counter itself.
	var attempts uint
	for grant != ticket {
		attempts = relax.Wait(attempts)
		grant = l.grant.Load()
	}
	return Token{ticket: ticket}
}

// TryLock attempts to acquire the lock without blocking. It returns an
// acquired Token and true if the lock was free and no other goroutine
// took a ticket first.
func (l *Lock) TryLock() (Token, bool) {
	ticket := l.nextTicket.Load()
	if l.grant.Load() != ticket {
		return Token{}, false
	}
	if l.nextTicket.CompareAndSwap(ticket, ticket+1) {
		return Token{ticket: ticket}, true
	}
	return Token{}, false
}

// Release grants the lock to the next ticket holder and wakes the
// waiter, if any, that is due to move from its slot to the short-term
// spin.
func (l *Lock) Release(t Token) {
	next := t.ticket + 1
	l.grant.Store(next)

	// The waiter holding ticket next+longTermThreshold, if it exists,
	// is parked on the slot its ticket hashes to. Bump that slot.
	wakeup := next + longTermThreshold
	waitingArray[hashTicket(wakeup)].sequence.Add(1)
}

// isFree checks if the lock is free.
func (l *Lock) isFree() bool { return l.grant.Load() == l.nextTicket.Load() }
