// Package frame implements the lock-light frame handoff between a driver
// callback (producer) and a render tick (consumer).
//
// An Exchange owns three equally sized buffers. At any instant each buffer
// holds exactly one role:
//
//	back  - registered with the driver, being written by the hardware
//	mid   - latest completed frame, not yet claimed by the consumer
//	front - frame currently exposed to the consumer for copying
//
// Publish swaps back and mid; AcquireIfNew swaps mid and front. The mutex is
// held only for the swap itself, never while bytes are copied, so neither side
// waits on the other for longer than a few assignments.
package frame

import (
	"math"
	"sync"
)

// Role identifies which part of the handoff a buffer currently plays.
type Role int

const (
	RoleBack Role = iota
	RoleMid
	RoleFront
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleBack:
		return "back"
	case RoleMid:
		return "mid"
	case RoleFront:
		return "front"
	default:
		return "unknown"
	}
}

// Allocator returns a zeroed buffer of n bytes.
// Drivers that need buffers outside the Go heap supply their own.
type Allocator func(n int) ([]byte, error)

// HeapAllocator allocates buffers on the Go heap.
func HeapAllocator(n int) (buf []byte, err error) {
	defer func() {
		if recover() != nil {
			buf, err = nil, ErrOutOfMemory
		}
	}()
	return make([]byte, n), nil
}

// Stats is a snapshot of exchange counters.
type Stats struct {
	Published    uint64 `json:"published"`
	Acquired     uint64 `json:"acquired"`
	Overwritten  uint64 `json:"overwritten"`
	ForeignCopy  uint64 `json:"foreign_copy"`
	Pending      uint32 `json:"pending"`
	BufferLength int    `json:"buffer_length"`
}

// Exchange is a triple buffer shared by one driver callback and one consumer.
type Exchange struct {
	mu sync.Mutex

	// bufs never changes after construction (until Release); roles permutes slots.
	bufs  [3][]byte
	roles [3]int // Role -> slot index

	pending  uint32
	released bool

	published   uint64
	acquired    uint64
	overwritten uint64
	foreignCopy uint64
}

// NewExchange allocates three buffers of size bytes.
// A nil alloc uses HeapAllocator. If any allocation fails, the buffers
// already obtained are handed to free (when non-nil) and ErrOutOfMemory is returned.
func NewExchange(size int, alloc Allocator, free func([]byte)) (*Exchange, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if alloc == nil {
		alloc = HeapAllocator
	}

	e := &Exchange{roles: [3]int{0, 1, 2}}
	for i := range e.bufs {
		buf, err := alloc(size)
		if err != nil || len(buf) < size {
			if free != nil {
				for j := 0; j < i; j++ {
					free(e.bufs[j])
				}
			}
			return nil, ErrOutOfMemory
		}
		e.bufs[i] = buf[:size]
	}
	return e, nil
}

// Back returns the buffer currently holding the back role.
// It is used to register the initial write target with the driver.
func (e *Exchange) Back() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil
	}
	return e.bufs[e.roles[RoleBack]]
}

// Publish hands a completed frame from the producer to the exchange and
// returns the buffer the driver must write next.
//
// written is normally the current back buffer. If the driver filled some other
// memory, its bytes are copied into back first so the role table only ever
// refers to buffers owned by this exchange.
//
// Publish must only be called from the producer context. It returns nil after Release.
func (e *Exchange) Publish(written []byte) []byte {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	back := e.bufs[e.roles[RoleBack]]
	e.mu.Unlock()

	// back is owned by the producer side, so filling it needs no lock.
	foreign := !sameBuffer(written, back)
	if foreign {
		copy(back, written)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return nil
	}

	e.roles[RoleBack], e.roles[RoleMid] = e.roles[RoleMid], e.roles[RoleBack]
	if e.pending > 0 {
		e.overwritten++
	}
	if e.pending < math.MaxUint32 {
		e.pending++
	}
	e.published++
	if foreign {
		e.foreignCopy++
	}
	return e.bufs[e.roles[RoleBack]]
}

// AcquireIfNew claims the freshest completed frame.
// It returns false when nothing was published since the previous claim; the
// consumer then keeps showing what it already has. The returned slice stays
// valid and unchanged until the next AcquireIfNew.
func (e *Exchange) AcquireIfNew() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.released || e.pending == 0 {
		return nil, false
	}

	e.roles[RoleFront], e.roles[RoleMid] = e.roles[RoleMid], e.roles[RoleFront]
	e.pending = 0
	e.acquired++
	return e.bufs[e.roles[RoleFront]], true
}

// Pending returns the number of frames published since the last claim.
func (e *Exchange) Pending() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Roles returns the slot index held by each role, indexed by Role.
// The result is always a permutation of {0, 1, 2}.
func (e *Exchange) Roles() [3]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roles
}

// Slot returns the buffer stored in slot i (0..2), or nil after Release.
func (e *Exchange) Slot(i int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released || i < 0 || i >= len(e.bufs) {
		return nil
	}
	return e.bufs[i]
}

// Len returns the size of each buffer in bytes.
func (e *Exchange) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bufs[0])
}

// Stats returns a snapshot of the exchange counters.
func (e *Exchange) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Published:    e.published,
		Acquired:     e.acquired,
		Overwritten:  e.overwritten,
		ForeignCopy:  e.foreignCopy,
		Pending:      e.pending,
		BufferLength: len(e.bufs[0]),
	}
}

// Release hands every buffer to free (when non-nil) and disables the exchange.
// Calling Release again is a no-op.
func (e *Exchange) Release(free func([]byte)) {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.released = true
	bufs := e.bufs
	e.bufs = [3][]byte{}
	e.pending = 0
	e.mu.Unlock()

	if free == nil {
		return
	}
	for _, b := range bufs {
		if b != nil {
			free(b)
		}
	}
}

// sameBuffer reports whether a and b start at the same address.
func sameBuffer(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}
