// Package sensitive implements a striped entry barrier for deferred
// reclamation.
//
// A Section is a region of code that any number of goroutines may occupy
// simultaneously, and for which another goroutine can wait until every
// occupant observed at the start of the wait has left. This is not mutual
// exclusion, and it is not a reader/writer lock: nothing prevents new
// goroutines from entering while or after Wait runs. The only guarantee is
// that occupants present when Wait began have since left at least once,
// which is exactly what a reclaimer needs to prove that no reader still
// holds a raw reference to a value swapped out before the wait.
//
// Waiters get no fairness: goroutines entering the section have static
// priority over Wait.
package sensitive

import (
	"runtime"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// DefaultStripes is the default number of occupancy counters.
const DefaultStripes = 128

// Each stripe gets its own cache line. The original tradeoff of packing
// counters to save space is not worth it here; 128 padded counters are 8KiB.
type stripe struct {
	n atomic.Int64
	_ cpu.CacheLinePad
}

// Section tracks occupancy across a fixed set of striped counters.
// The zero value is not usable; construct with New.
type Section struct {
	stripes []stripe
}

// New creates a Section with the given number of stripes.
// If n <= 0, DefaultStripes is used.
func New(n int) *Section {
	if n <= 0 {
		n = DefaultStripes
	}
	return &Section{stripes: make([]stripe, n)}
}

// Ticket identifies the stripe an Enter call incremented. The holder must
// pass it back to Leave so the matching counter is decremented even if the
// goroutine has since migrated to another thread.
type Ticket uint32

// Enter marks the calling goroutine as inside the section and returns the
// ticket for the matching Leave. Callers must guarantee the Leave happens,
// typically via defer immediately after Enter; a lost ticket stalls every
// future Wait forever.
func (s *Section) Enter() Ticket {
	t := Ticket(s.stripe())
	s.stripes[t].n.Add(1)
	return t
}

// Leave reverses the Enter that produced t.
func (s *Section) Leave(t Ticket) {
	s.stripes[t].n.Add(-1)
}

// Wait returns once every goroutine that was inside the section when Wait
// began has left at least once. Goroutines entering afterwards are not
// waited for.
func (s *Section) Wait() {
	for i := range s.stripes {
		spins := 0
		for s.stripes[i].n.Load() != 0 {
			backoff(&spins)
		}
	}
}

// AppearsFree reports whether no goroutine appears to be inside the
// section. The answer is racy; it is only meaningful when the caller knows
// by construction that no goroutine can enter concurrently (teardown
// assertions).
func (s *Section) AppearsFree() bool {
	for i := range s.stripes {
		if s.stripes[i].n.Load() != 0 {
			return false
		}
	}
	return true
}

// stripe picks a counter for the calling goroutine. Go exposes no goroutine
// or thread identity, so we hash the address of a stack variable: stacks
// are disjoint, so concurrent goroutines spread across stripes. The Knuth
// multiplicative hash scatters the aligned low bits.
func (s *Section) stripe() uint32 {
	var probe byte
	addr := uintptr(unsafe.Pointer(&probe))
	return uint32((uint64(addr>>4) * 2654435761) % uint64(len(s.stripes)))
}

// backoff spins briefly, then yields, then sleeps. Occupants are expected
// to hold the section for only a few instructions, so a waiter almost
// always resolves in the spin phase.
func backoff(spins *int) {
	const (
		yieldAfter = 32
		sleepAfter = 1024
		sleepFor   = 100 * time.Microsecond
	)
	*spins++
	switch {
	case *spins < yieldAfter:
		// Busy spin; the occupant is mid-load on another core.
	case *spins < sleepAfter:
		runtime.Gosched()
	default:
		time.Sleep(sleepFor)
	}
}
