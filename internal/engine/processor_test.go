package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/publish"
	"github.com/datorot93/matching-engine-sub000/internal/ringbuffer"
	"github.com/datorot93/matching-engine-sub000/internal/telemetry"
	"github.com/datorot93/matching-engine-sub000/internal/wal"
)

type nopSender struct{}

func (nopSender) Send(context.Context, publish.Job) error { return nil }

func newTestProcessor(t *testing.T, symbols ...string) (*Processor, *ringbuffer.RingBuffer) {
	t.Helper()
	ring := ringbuffer.New(16)
	walLog, err := wal.Open(t.TempDir()+"/wal.log", 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = walLog.Close() })

	publisher := publish.New(16, nopSender{})

	p := New(Config{
		Symbols:   symbols,
		Ring:      ring,
		WAL:       walLog,
		Publisher: publisher,
		Metrics:   telemetry.NewRegistry("test-shard"),
		OnFatal:   func(err error) { t.Errorf("unexpected fatal: %v", err) },
	})
	return p, ring
}

func submit(t *testing.T, ring *ringbuffer.RingBuffer, symbol string, side book.Side, price book.Price, qty uint64) {
	t.Helper()
	seq, err := ring.Claim()
	require.NoError(t, err)
	*ring.Slot(seq) = ringbuffer.OrderEvent{
		ReceivedNanos: time.Now().UnixNano(),
		OrderID:       book.OrderID("order"),
		Symbol:        symbol,
		Side:          side,
		OrderType:     book.Limit,
		Price:         price,
		Quantity:      qty,
		CallerTime:    time.Now(),
	}
	ring.Publish(seq)
}

// runUntilDrained starts the processor, waits for everything already
// published to be consumed, then stops it and blocks until Run has
// returned, so the caller can inspect book state without racing the
// consumer goroutine (Processor.Book is only safe once Run has exited).
func runUntilDrained(t *testing.T, p *Processor, ring *ringbuffer.RingBuffer, lastSeq uint64) {
	t.Helper()
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		p.Run(done)
	}()

	require.Eventually(t, func() bool {
		return ring.Utilization() == 0
	}, time.Second, 5*time.Millisecond, "waiting for consumer to catch up")

	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestProcessor_RestsValidOrder(t *testing.T) {
	p, ring := newTestProcessor(t, "AAPL")

	submit(t, ring, "AAPL", book.Buy, 10000, 50)
	runUntilDrained(t, p, ring, 0)

	b, ok := p.Book("AAPL")
	require.True(t, ok)
	assert.Equal(t, uint64(50), b.BidDepth())
}

func TestProcessor_MatchesCrossingOrders(t *testing.T) {
	p, ring := newTestProcessor(t, "AAPL")

	submit(t, ring, "AAPL", book.Sell, 10000, 100)
	submit(t, ring, "AAPL", book.Buy, 10000, 100)
	runUntilDrained(t, p, ring, 1)

	b, ok := p.Book("AAPL")
	require.True(t, ok)
	assert.Equal(t, uint64(0), b.BidDepth())
	assert.Equal(t, uint64(0), b.AskDepth())
}

func TestProcessor_RejectsUnknownSymbol(t *testing.T) {
	p, ring := newTestProcessor(t, "AAPL")

	submit(t, ring, "MSFT", book.Buy, 10000, 10)
	runUntilDrained(t, p, ring, 0)

	_, ok := p.Book("MSFT")
	assert.False(t, ok, "a rejected symbol must never get a book")
}

func TestProcessor_SeedBypassesRingBuffer(t *testing.T) {
	p, _ := newTestProcessor(t, "AAPL")
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		p.Run(done)
	}()

	order := &book.Order{
		ID: "seed1", Symbol: "AAPL", Side: book.Buy, Type: book.Limit,
		Limit: 9900, Original: 25, Remaining: 25, Status: book.New,
	}
	require.NoError(t, p.Seed(order))

	close(done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}

	b, ok := p.Book("AAPL")
	require.True(t, ok)
	assert.Equal(t, uint64(25), b.BidDepth())

	assert.NotPanics(t, p.LogBook)
}
