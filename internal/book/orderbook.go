package book

import (
	"errors"

	"github.com/tidwall/btree"
)

var (
	// ErrNotResting is returned by AddOrder when called on an order that
	// cannot be rested (a bug in the caller, not a runtime condition).
	ErrNotResting = errors.New("book: order is not in a restable state")
)

// PriceLevel holds every order resting at one price on one side, in arrival
// (FIFO) order: append at the tail, consume from the head.
type PriceLevel struct {
	Price         Price
	Orders        []*Order
	TotalQuantity uint64
}

func newPriceLevel(price Price) *PriceLevel {
	return &PriceLevel{Price: price}
}

func (l *PriceLevel) append(o *Order) {
	l.Orders = append(l.Orders, o)
	l.TotalQuantity += o.Remaining
}

func (l *PriceLevel) empty() bool {
	return len(l.Orders) == 0
}

// Head returns the longest-resting order at this level, or nil if empty.
func (l *PriceLevel) Head() *Order {
	if l.empty() {
		return nil
	}
	return l.Orders[0]
}

// PriceLevels is the sorted-map type backing bids/asks.
type PriceLevels = btree.BTreeG[*PriceLevel]

type indexEntry struct {
	side  Side
	level *PriceLevel
}

// OrderBook is the per-symbol three-way-indexed book of spec §3/§4.1: a
// descending-price bid map, an ascending-price ask map, and an id index
// reserved for O(1) cancel-by-id.
type OrderBook struct {
	Symbol string

	bids *PriceLevels
	asks *PriceLevels

	orderIndex map[OrderID]*indexEntry

	bidQuantity uint64
	askQuantity uint64
}

// New constructs an empty book for symbol.
func New(symbol string) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: best ask first
	})
	return &OrderBook{
		Symbol:     symbol,
		bids:       bids,
		asks:       asks,
		orderIndex: make(map[OrderID]*indexEntry),
	}
}

func (b *OrderBook) levels(side Side) *PriceLevels {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

// AddOrder places order into the level matching its side+price, creating
// the level if absent, and indexes it by id.
//
// Precondition: order.Remaining > 0 and order.Status is New or
// PartiallyFilled. Violating this is a caller bug, not a recoverable error.
func (b *OrderBook) AddOrder(order *Order) error {
	if order.Remaining == 0 || order.Status.Terminal() {
		return ErrNotResting
	}

	levels := b.levels(order.Side)
	probe := &PriceLevel{Price: order.Limit}
	level, ok := levels.GetMut(probe)
	if !ok {
		level = newPriceLevel(order.Limit)
		levels.Set(level)
	}
	level.append(order)
	b.orderIndex[order.ID] = &indexEntry{side: order.Side, level: level}
	b.addDepth(order.Side, int64(order.Remaining))
	return nil
}

// RemoveOrder unlinks orderID from its level, removing the level if it
// becomes empty, and erases the index entry. No-op if not found.
func (b *OrderBook) RemoveOrder(orderID OrderID) {
	entry, ok := b.orderIndex[orderID]
	if !ok {
		return
	}
	level := entry.level
	for i, o := range level.Orders {
		if o.ID == orderID {
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			level.TotalQuantity -= o.Remaining
			b.addDepth(entry.side, -int64(o.Remaining))
			break
		}
	}
	delete(b.orderIndex, orderID)
	if level.empty() {
		b.levels(entry.side).Delete(level)
	}
}

// ApplyFill records that qty of liquidity was consumed from the head order
// of level (on the given side), keeping the level's aggregate and the
// book's depth gauges consistent with the order's own reduced Remaining.
// The caller (the matcher) is responsible for calling Order.Fill on the
// head order itself.
func (b *OrderBook) ApplyFill(side Side, level *PriceLevel, qty uint64) {
	level.TotalQuantity -= qty
	b.addDepth(side, -int64(qty))
}

// PopHead removes the fully-consumed head order of level from the book:
// the level's order slice, the id index, and (if the level is now empty)
// the level itself from the sorted map. Callers must only invoke this once
// the head order's Remaining has reached zero.
func (b *OrderBook) PopHead(side Side, level *PriceLevel) *Order {
	head := level.Head()
	if head == nil {
		return nil
	}
	level.Orders = level.Orders[1:]
	delete(b.orderIndex, head.ID)
	if level.empty() {
		b.levels(side).Delete(level)
	}
	return head
}

func (b *OrderBook) addDepth(side Side, delta int64) {
	if side == Buy {
		b.bidQuantity = uint64(int64(b.bidQuantity) + delta)
	} else {
		b.askQuantity = uint64(int64(b.askQuantity) + delta)
	}
}

// BestBid returns the highest bid level, or nil if bids are empty.
func (b *OrderBook) BestBid() *PriceLevel {
	level, ok := b.bids.Min()
	if !ok {
		return nil
	}
	return level
}

// BestAsk returns the lowest ask level, or nil if asks are empty.
func (b *OrderBook) BestAsk() *PriceLevel {
	level, ok := b.asks.Min()
	if !ok {
		return nil
	}
	return level
}

// BestOpposite returns the best level on the side opposite to side: asks
// for a Buy, bids for a Sell. This is the side the matcher sweeps.
func (b *OrderBook) BestOpposite(side Side) *PriceLevel {
	if side == Buy {
		return b.BestAsk()
	}
	return b.BestBid()
}

// Bids exposes the raw sorted map for the seed path and tests.
func (b *OrderBook) Bids() *PriceLevels { return b.bids }

// Asks exposes the raw sorted map for the seed path and tests.
func (b *OrderBook) Asks() *PriceLevels { return b.asks }

// BidDepth is the O(1) aggregate bid-side remaining quantity.
func (b *OrderBook) BidDepth() uint64 { return b.bidQuantity }

// AskDepth is the O(1) aggregate ask-side remaining quantity.
func (b *OrderBook) AskDepth() uint64 { return b.askQuantity }

// BidLevelCount is the number of distinct bid price levels.
func (b *OrderBook) BidLevelCount() int { return b.bids.Len() }

// AskLevelCount is the number of distinct ask price levels.
func (b *OrderBook) AskLevelCount() int { return b.asks.Len() }

// Crossed reports whether the book is in an invalid resting state (best bid
// at or above best ask). Used by tests asserting spec §3's at-rest
// invariant; never true between processed events.
func (b *OrderBook) Crossed() bool {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == nil || ask == nil {
		return false
	}
	return bid.Price >= ask.Price
}
