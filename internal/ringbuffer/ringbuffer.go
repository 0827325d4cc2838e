// Package ringbuffer implements the lock-free, pre-allocated multi-producer/
// single-consumer queue of spec §4.3: a fixed power-of-two slot array, an
// atomic cursor claimed by producers, a per-slot availability counter
// published with release semantics, and a single consumer that drains
// contiguous runs with a yielding wait strategy.
//
// Grounded on the "Sequencer (Ring Buf)" / LMAX Disruptor architecture named
// (but not implemented) by rishavpaul-system-design/order-matching-engine;
// no importable Go disruptor library exists in the example pack or at
// sufficient maturity in the broader ecosystem, so this is hand-rolled
// against spec §4.3's explicit claim/write/publish and wait/drain/advance
// protocol.
package ringbuffer

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/datorot93/matching-engine-sub000/internal/book"
)

// ErrBufferFull is returned by Claim when the ring buffer has no free slot:
// the consumer has not yet caught up. Producers must fail the submission
// immediately rather than wait (spec §4.3/§7 "busy/overflow").
var ErrBufferFull = errors.New("ringbuffer: buffer full")

// OrderEvent is the pre-allocated, in-place-mutated slot object (spec §3).
// Producers overwrite every field rather than allocate; slots are recycled
// indefinitely for the lifetime of the ring buffer.
type OrderEvent struct {
	ReceivedNanos int64
	OrderID       book.OrderID
	Symbol        string
	Side          book.Side
	OrderType     book.OrderType
	Price         book.Price
	Quantity      uint64
	CallerTime    time.Time
}

// spinIterations is how long the consumer busy-spins on an unavailable slot
// before yielding the OS thread (spec §4.3 "bounded spin ... then yield").
const spinIterations = 256

// RingBuffer is a fixed-size, power-of-two array of pre-allocated slots.
// Size must be a power of two so index arithmetic is a mask.
type RingBuffer struct {
	mask    uint64
	slots   []OrderEvent
	// available[i] holds the sequence number last published into slot i,
	// or -1 if the slot has never been published. A slot is available for
	// sequence s once available[s&mask] == int64(s).
	available []int64

	cursor   atomic.Uint64 // next sequence to be claimed
	consumed atomic.Uint64 // next sequence the consumer will process
}

// New builds a ring buffer with the given power-of-two size.
func New(size int) *RingBuffer {
	if size <= 0 || size&(size-1) != 0 {
		panic("ringbuffer: size must be a power of two")
	}
	available := make([]int64, size)
	for i := range available {
		available[i] = -1
	}
	return &RingBuffer{
		mask:      uint64(size - 1),
		slots:     make([]OrderEvent, size),
		available: available,
	}
}

// Size returns the configured slot count.
func (r *RingBuffer) Size() int { return len(r.slots) }

// Claim reserves the next sequence for a producer. It returns ErrBufferFull
// immediately if the buffer has no free slot; it never blocks (spec §4.3
// step 1, §5 "producer ... does not wait").
func (r *RingBuffer) Claim() (uint64, error) {
	for {
		current := r.cursor.Load()
		if current-r.consumed.Load() >= uint64(len(r.slots)) {
			return 0, ErrBufferFull
		}
		if r.cursor.CompareAndSwap(current, current+1) {
			return current, nil
		}
	}
}

// Slot returns a pointer to the pre-allocated slot for sequence s, for the
// producer to overwrite in place.
func (r *RingBuffer) Slot(s uint64) *OrderEvent {
	return &r.slots[s&r.mask]
}

// Publish marks sequence s as available to the consumer. It must be called
// only after the slot's fields have been fully written; the store here is
// the release fence the consumer's load (in isAvailable) acquires against.
func (r *RingBuffer) Publish(s uint64) {
	atomic.StoreInt64(&r.available[s&r.mask], int64(s))
}

// isAvailable reports whether sequence s has been published.
func (r *RingBuffer) isAvailable(s uint64) bool {
	return atomic.LoadInt64(&r.available[s&r.mask]) == int64(s)
}

// Utilization returns the fraction of the buffer currently occupied,
// in [0, 1], for the ring_buffer_utilization_ratio gauge (spec §6).
func (r *RingBuffer) Utilization() float64 {
	inFlight := r.cursor.Load() - r.consumed.Load()
	return float64(inFlight) / float64(len(r.slots))
}

// Batch is the contiguous run [Start, End] of sequences the consumer may
// process in one pass. End is the end_of_batch event: the consumer runs its
// batch-aware durability flush after processing it (spec §4.3/§4.4).
type Batch struct {
	Start, End uint64
}

// Len returns the number of sequences in the batch.
func (b Batch) Len() int { return int(b.End-b.Start) + 1 }

// Poll applies the yielding wait strategy once: it busy-spins for
// spinIterations checking whether sequence n is available, then yields the
// OS thread once if it still isn't. It never blocks on a kernel primitive
// (spec §4.3/§5). The caller is expected to call Poll in a loop, checking
// its own shutdown/interrupt conditions between calls so that, e.g., the
// seed bypass (spec §6) can interleave with an otherwise-idle consumer.
//
// On success it returns the batch [n, m] of every contiguously available
// sequence at or above n (the end_of_batch marker is m).
func (r *RingBuffer) Poll(n uint64) (Batch, bool) {
	for spins := 0; spins < spinIterations; spins++ {
		if r.isAvailable(n) {
			return r.batchFrom(n), true
		}
	}
	runtime.Gosched()
	if !r.isAvailable(n) {
		return Batch{}, false
	}
	return r.batchFrom(n), true
}

// WaitFor blocks (repeatedly polling with the yielding wait strategy) until
// at least sequence n is available, or done is closed. It is a convenience
// wrapper over Poll for callers with no other event source to interleave.
func (r *RingBuffer) WaitFor(n uint64, done <-chan struct{}) (Batch, bool) {
	for {
		if batch, ok := r.Poll(n); ok {
			return batch, true
		}
		select {
		case <-done:
			return Batch{}, false
		default:
		}
	}
}

func (r *RingBuffer) batchFrom(n uint64) Batch {
	m := n
	for r.isAvailable(m + 1) {
		m++
	}
	return Batch{Start: n, End: m}
}

// Advance publishes that every sequence up to and including s has been
// processed, freeing those slots for producers to reclaim.
func (r *RingBuffer) Advance(s uint64) {
	r.consumed.Store(s + 1)
}
