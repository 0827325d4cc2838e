// Package engine implements the single-consumer event processor (spec
// §4.4): the sole writer of the order book, the WAL, and the publisher's
// enqueue path. For each claimed ring buffer event it validates, matches,
// appends to the WAL, publishes, and records metrics, in that order,
// never letting an error escape the loop.
//
// Grounded on fenrir/internal/engine/engine.go's Engine.Trade dispatch
// point and per-asset-type book map (generalized to per-symbol), and
// fenrir/internal/net/server.go's sessionHandler/handleMessage idiom of
// validating, dispatching, and reporting an error without unwinding.
package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/matching"
	"github.com/datorot93/matching-engine-sub000/internal/publish"
	"github.com/datorot93/matching-engine-sub000/internal/ringbuffer"
	"github.com/datorot93/matching-engine-sub000/internal/telemetry"
	"github.com/datorot93/matching-engine-sub000/internal/wal"
)

var (
	// ErrInvariantViolation is passed to the fatal handler when a core
	// assertion fails (a zero-quantity fill, quantity conservation). The
	// shard must not continue under corrupted state (spec §7).
	ErrInvariantViolation = errors.New("engine: invariant violation")
)

// FatalHandler is invoked once, from the consumer goroutine, when an
// invariant violation is detected. Implementations stop the shard's
// supervision tree so the process exits and can be restarted (spec §7).
type FatalHandler func(err error)

// Processor is the shard's single consumer: it owns every OrderBook, the
// WAL, the publisher, and the metrics registry. All of its methods other
// than Run/Seed are meant to be called only from the Run goroutine.
type Processor struct {
	symbols map[string]struct{}
	books   map[string]*book.OrderBook
	seq     matching.Sequencer

	ring      *ringbuffer.RingBuffer
	walLog    *wal.Log
	publisher *publish.Publisher
	metrics   *telemetry.Registry
	onFatal   FatalHandler

	now func() time.Time

	seedCh chan seedRequest
}

type seedRequest struct {
	order *book.Order
	done  chan error
}

// Config gathers the collaborators a Processor is assembled from.
type Config struct {
	Symbols   []string
	Ring      *ringbuffer.RingBuffer
	WAL       *wal.Log
	Publisher *publish.Publisher
	Metrics   *telemetry.Registry
	OnFatal   FatalHandler
}

// New builds a Processor for the given shard configuration.
func New(cfg Config) *Processor {
	symbols := make(map[string]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = struct{}{}
	}
	return &Processor{
		symbols:   symbols,
		books:     make(map[string]*book.OrderBook),
		ring:      cfg.Ring,
		walLog:    cfg.WAL,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		onFatal:   cfg.OnFatal,
		now:       time.Now,
		seedCh:    make(chan seedRequest, 1),
	}
}

// bookFor returns (lazily creating) the OrderBook for symbol.
func (p *Processor) bookFor(symbol string) *book.OrderBook {
	b, ok := p.books[symbol]
	if !ok {
		b = book.New(symbol)
		p.books[symbol] = b
	}
	return b
}

// Book exposes the per-symbol book for read-only telemetry/snapshot
// purposes. Must only be called from the Run goroutine or after shutdown.
func (p *Processor) Book(symbol string) (*book.OrderBook, bool) {
	b, ok := p.books[symbol]
	return b, ok
}

// Run drains the ring buffer in batches until done is closed, running the
// full per-event pipeline for each claimed sequence (spec §4.3/§4.4).
func (p *Processor) Run(done <-chan struct{}) {
	next := uint64(0)
	for {
		select {
		case <-done:
			p.drainRemaining(next)
			p.shutdown()
			return
		case req := <-p.seedCh:
			p.applySeed(req)
			continue
		default:
		}

		batch, ok := p.ring.Poll(next)
		if !ok {
			continue
		}
		p.processBatch(batch)
		next = batch.End + 1
	}
}

// drainRemaining processes whatever is already published at or above next,
// without waiting further: shutdown means the cursor will not advance
// past what producers already claimed (spec §4.3 "drains to the current
// cursor").
func (p *Processor) drainRemaining(next uint64) {
	for {
		batch, ok := p.ring.Poll(next)
		if !ok {
			return
		}
		p.processBatch(batch)
		next = batch.End + 1
	}
}

func (p *Processor) processBatch(batch ringbuffer.Batch) {
	for seq := batch.Start; seq <= batch.End; seq++ {
		slot := p.ring.Slot(seq)
		p.processEvent(slot)

		if seq == batch.End {
			p.endOfBatch()
		}
	}
	p.ring.Advance(batch.End)
}

func (p *Processor) endOfBatch() {
	if err := p.walLog.Force(); err != nil {
		log.Error().Err(err).Msg("wal force failed")
	}
}

// Seed places order directly into its symbol's book, bypassing the ring
// buffer and producing no WAL/publish events (spec §6 "/seed"). It is
// test-only and safe to call from any goroutine: the request is handed to
// the consumer goroutine to preserve single-writer book ownership.
func (p *Processor) Seed(order *book.Order) error {
	done := make(chan error, 1)
	p.seedCh <- seedRequest{order: order, done: done}
	return <-done
}

func (p *Processor) applySeed(req seedRequest) {
	req.done <- p.bookFor(req.order.Symbol).AddOrder(req.order)
}

func (p *Processor) shutdown() {
	if err := p.walLog.Force(); err != nil {
		log.Error().Err(err).Msg("wal force on shutdown failed")
	}
}

// mintID assigns an OrderId when the caller didn't supply one (spec
// §4.4/grounded on fenrir's NewOrderMessage.Order()).
func mintID(existing book.OrderID) book.OrderID {
	if existing != "" {
		return existing
	}
	return book.OrderID(uuid.New().String())
}

// LogBook dumps best bid/ask and level counts for every known symbol
// through zerolog. Not part of the public HTTP surface (the teacher's
// net.Engine.LogBook() debug hook, kept as an admin-only diagnostic); no
// HTTP route calls it, only tests do. It is only safe to call once Run has
// exited or from the Run goroutine itself.
func (p *Processor) LogBook() {
	for symbol, b := range p.books {
		bid, ask := b.BestBid(), b.BestAsk()
		event := log.Info().Str("symbol", symbol).
			Int("bidLevels", b.BidLevelCount()).
			Int("askLevels", b.AskLevelCount()).
			Uint64("bidDepth", b.BidDepth()).
			Uint64("askDepth", b.AskDepth())
		if bid != nil {
			event = event.Int64("bestBid", int64(bid.Price))
		}
		if ask != nil {
			event = event.Int64("bestAsk", int64(ask.Price))
		}
		event.Msg("book snapshot")
	}
}
