// Package matching implements the price-time priority matching algorithm
// (spec §4.2): a stateless function that sweeps an incoming order against
// the opposite side of a book, producing fills while preserving quantity
// conservation, price monotonicity, and strict maker/taker assignment.
//
// Grounded on fenrir/internal/engine/orderbook.go's Match() sweep (head-of-
// level consumption, min(ask, bid) fill sizing, level deletion on empty),
// generalized from "match the whole crossed book" to "match one taker
// against one side", following the shape of matchOrder in
// rishavpaul-system-design/order-matching-engine.
package matching

import (
	"fmt"
	"time"

	"github.com/datorot93/matching-engine-sub000/internal/book"
)

// MatchResult is a single maker/taker fill.
type MatchResult struct {
	MatchID      uint64
	TakerOrderID book.OrderID
	MakerOrderID book.OrderID
	Symbol       string
	Price        book.Price // the maker's resting price, never the taker's limit
	Quantity     uint64
	Timestamp    time.Time
	TakerSide    book.Side
}

func (m MatchResult) String() string {
	return fmt.Sprintf(
		"Match{id=%d taker=%s maker=%s symbol=%s price=%d qty=%d}",
		m.MatchID, m.TakerOrderID, m.MakerOrderID, m.Symbol, m.Price, m.Quantity,
	)
}

// MatchResultSet is the ordered set of fills produced for one incoming
// order, plus whether it was fully consumed.
type MatchResultSet struct {
	Results       []MatchResult
	FilledTotal   uint64
	FullyConsumed bool
}

// Sequencer mints monotonically increasing match ids, unique within one
// shard's runtime (spec §4.2 "MatchId generation").
type Sequencer struct {
	next uint64
}

// Next returns the next match id.
func (s *Sequencer) Next() uint64 {
	s.next++
	return s.next
}

// Match consumes incoming against the opposite side of book in price-time
// priority, mutating resting orders in place and removing fully-drained
// ones from the book. incoming.Remaining is reduced by the total filled;
// the caller is responsible for resting any leftover quantity via
// book.AddOrder.
func Match(b *book.OrderBook, incoming *book.Order, seq *Sequencer, now func() time.Time) MatchResultSet {
	var set MatchResultSet

	for incoming.Remaining > 0 {
		level := b.BestOpposite(incoming.Side)
		if level == nil {
			break
		}
		if !crosses(incoming, level.Price) {
			break
		}

		for incoming.Remaining > 0 {
			resting := level.Head()
			if resting == nil {
				break
			}

			fill := min(incoming.Remaining, resting.Remaining)

			incoming.Fill(fill)
			resting.Fill(fill)
			b.ApplyFill(opposite(incoming.Side), level, fill)

			set.Results = append(set.Results, MatchResult{
				MatchID:      seq.Next(),
				TakerOrderID: incoming.ID,
				MakerOrderID: resting.ID,
				Symbol:       incoming.Symbol,
				Price:        level.Price,
				Quantity:     fill,
				Timestamp:    now(),
				TakerSide:    incoming.Side,
			})
			set.FilledTotal += fill

			if resting.Remaining == 0 {
				b.PopHead(opposite(incoming.Side), level)
			}
		}
	}

	set.FullyConsumed = incoming.Remaining == 0
	return set
}

// crosses reports whether incoming's limit crosses the best opposite price.
func crosses(incoming *book.Order, bestOpposite book.Price) bool {
	if incoming.Side == book.Buy {
		return incoming.Limit >= bestOpposite
	}
	return incoming.Limit <= bestOpposite
}

func opposite(side book.Side) book.Side {
	if side == book.Buy {
		return book.Sell
	}
	return book.Buy
}
