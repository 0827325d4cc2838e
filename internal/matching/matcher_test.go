package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datorot93/matching-engine-sub000/internal/book"
)

func fixedNow() time.Time { return time.Unix(0, 0) }

func newOrder(id book.OrderID, side book.Side, price book.Price, qty uint64) *book.Order {
	return &book.Order{
		ID: id, Symbol: "AAPL", Side: side, Type: book.Limit,
		Limit: price, Original: qty, Remaining: qty, Status: book.New,
	}
}

func TestMatch_NoCross_RestsEntireOrder(t *testing.T) {
	b := book.New("AAPL")
	require.NoError(t, b.AddOrder(newOrder("resting", book.Sell, 10100, 100)))

	incoming := newOrder("taker", book.Buy, 10000, 50)
	seq := &Sequencer{}

	set := Match(b, incoming, seq, fixedNow)

	assert.Empty(t, set.Results)
	assert.Equal(t, uint64(50), incoming.Remaining)
	assert.False(t, set.FullyConsumed)
}

func TestMatch_ExactFill_SingleMaker(t *testing.T) {
	b := book.New("AAPL")
	require.NoError(t, b.AddOrder(newOrder("maker", book.Sell, 10000, 100)))

	incoming := newOrder("taker", book.Buy, 10000, 100)
	seq := &Sequencer{}

	set := Match(b, incoming, seq, fixedNow)

	require.Len(t, set.Results, 1)
	assert.Equal(t, uint64(100), set.Results[0].Quantity)
	assert.Equal(t, book.Price(10000), set.Results[0].Price, "fill price is the maker's resting price")
	assert.True(t, set.FullyConsumed)
	assert.Equal(t, uint64(0), incoming.Remaining)
	assert.Nil(t, b.BestAsk(), "fully consumed level must be removed")
}

func TestMatch_PartialFill_MakerRemainsAtHead(t *testing.T) {
	b := book.New("AAPL")
	require.NoError(t, b.AddOrder(newOrder("maker", book.Sell, 10000, 100)))

	incoming := newOrder("taker", book.Buy, 10000, 40)
	seq := &Sequencer{}

	set := Match(b, incoming, seq, fixedNow)

	require.Len(t, set.Results, 1)
	assert.Equal(t, uint64(40), set.Results[0].Quantity)
	level := b.BestAsk()
	require.NotNil(t, level)
	assert.Equal(t, uint64(60), level.TotalQuantity)
	assert.Equal(t, uint64(60), b.AskDepth())
}

func TestMatch_SweepsMultipleLevelsInPriceTimeOrder(t *testing.T) {
	b := book.New("AAPL")
	require.NoError(t, b.AddOrder(newOrder("m1", book.Sell, 10000, 50)))
	require.NoError(t, b.AddOrder(newOrder("m2", book.Sell, 10000, 50)))
	require.NoError(t, b.AddOrder(newOrder("m3", book.Sell, 10100, 20)))

	incoming := newOrder("taker", book.Buy, 10100, 120)
	seq := &Sequencer{}

	set := Match(b, incoming, seq, fixedNow)

	require.Len(t, set.Results, 3)
	assert.Equal(t, book.OrderID("m1"), set.Results[0].MakerOrderID, "FIFO within level")
	assert.Equal(t, book.OrderID("m2"), set.Results[1].MakerOrderID)
	assert.Equal(t, book.OrderID("m3"), set.Results[2].MakerOrderID)
	assert.Equal(t, uint64(120), set.FilledTotal)
	assert.True(t, set.FullyConsumed)
	assert.Nil(t, b.BestAsk())
}

func TestMatch_QuantityConservation(t *testing.T) {
	b := book.New("AAPL")
	require.NoError(t, b.AddOrder(newOrder("m1", book.Sell, 10000, 30)))
	require.NoError(t, b.AddOrder(newOrder("m2", book.Sell, 10050, 90)))

	incoming := newOrder("taker", book.Buy, 10050, 200)
	seq := &Sequencer{}

	set := Match(b, incoming, seq, fixedNow)

	var sum uint64
	for _, r := range set.Results {
		sum += r.Quantity
	}
	assert.Equal(t, sum, set.FilledTotal)
	assert.Equal(t, incoming.Original, incoming.Filled+incoming.Remaining)
	assert.Equal(t, uint64(80), incoming.Remaining, "only 120 of resting liquidity crossed")
}

func TestSequencer_MonotonicallyIncreasing(t *testing.T) {
	seq := &Sequencer{}
	first := seq.Next()
	second := seq.Next()
	assert.Less(t, first, second)
}
