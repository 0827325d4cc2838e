// Package book implements the per-symbol, price-time-priority order book:
// sorted bid/ask price levels, FIFO within a level, and an id index reserved
// for O(1) cancel.
package book

import (
	"fmt"
	"time"
)

// Price is an integer number of cents. The book never stores or compares
// floating point prices.
type Price int64

// Side identifies which side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// OrderType is the order's execution style. Only LIMIT is implemented;
// market-order semantics are out of scope (spec Non-goals).
type OrderType int

const (
	Limit OrderType = iota
)

// Status is the lifecycle state of an Order.
type Status int

const (
	New Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
)

func (s Status) String() string {
	switch s {
	case New:
		return "NEW"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether status cannot transition further.
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled || s == Rejected
}

// OrderID is caller-assigned (or minted by the processor when absent),
// unique per shard for the duration of the order's lifetime in the book.
type OrderID string

// Order is a single resting or incoming limit order.
//
// Invariant: Remaining + Filled == Original. Status == Filled iff
// Remaining == 0. Status is one of {New, PartiallyFilled} while the order
// rests in the book.
type Order struct {
	ID        OrderID
	Symbol    string
	Side      Side
	Type      OrderType
	Limit     Price
	Original  uint64
	Remaining uint64
	Filled    uint64

	// Timestamp is the caller-supplied arrival time, advisory only: it
	// never decides priority (ring buffer sequence order does).
	Timestamp time.Time
	// ExchTimestamp is stamped by the processor when it builds the order
	// from a ring buffer event; seeded orders leave it zero.
	ExchTimestamp time.Time

	Owner  string
	Status Status
}

// Fill reduces Remaining by qty and tracks Filled, updating Status.
// qty must not exceed Remaining; callers (the matcher) guarantee this.
func (o *Order) Fill(qty uint64) {
	o.Remaining -= qty
	o.Filled += qty
	if o.Remaining == 0 {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s symbol=%s side=%s limit=%d remaining=%d/%d status=%s owner=%s}",
		o.ID, o.Symbol, o.Side, o.Limit, o.Remaining, o.Original, o.Status, o.Owner,
	)
}
