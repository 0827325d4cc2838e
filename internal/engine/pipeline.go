package engine

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/matching"
	"github.com/datorot93/matching-engine-sub000/internal/publish"
	"github.com/datorot93/matching-engine-sub000/internal/ringbuffer"
	"github.com/datorot93/matching-engine-sub000/internal/wal"
)

// processEvent runs the eight-step per-event pipeline of spec §4.4:
// validate, book lookup, construct, match, rest, WAL append, publish,
// metrics. Errors from the steps are logged or counted and never returned;
// invariant violations call p.onFatal instead of propagating. Panics are
// not recovered here.
func (p *Processor) processEvent(evt *ringbuffer.OrderEvent) {
	received := time.Unix(0, evt.ReceivedNanos)

	validateStart := time.Now()
	reason, ok := validate(evt, p.symbols)
	p.metrics.PhaseLatency.WithLabelValues("validate").Observe(time.Since(validateStart).Seconds())
	if !ok {
		p.rejectEvent(evt, reason)
		p.recordLatency(received)
		return
	}

	b := p.bookFor(evt.Symbol)
	incoming := p.newOrder(evt)

	p.metrics.OrdersReceived.WithLabelValues(incoming.Side.String()).Inc()

	matchStart := time.Now()
	results := matching.Match(b, incoming, &p.seq, p.now)
	p.metrics.PhaseLatency.WithLabelValues("match").Observe(time.Since(matchStart).Seconds())
	p.checkInvariants(incoming, results)

	p.metrics.MatchesEmitted.Add(float64(len(results.Results)))

	if incoming.Remaining > 0 {
		insertStart := time.Now()
		err := b.AddOrder(incoming)
		p.metrics.PhaseLatency.WithLabelValues("insert").Observe(time.Since(insertStart).Seconds())
		if err != nil {
			// AddOrder's precondition failed despite the pipeline's own
			// bookkeeping: this can only mean a bug in this package, not
			// a data condition, so it is fatal (spec §7).
			p.fatal(err, incoming)
			return
		}
	}

	walStart := time.Now()
	p.appendWAL(incoming, results)
	p.metrics.PhaseLatency.WithLabelValues("wal").Observe(time.Since(walStart).Seconds())

	publishStart := time.Now()
	p.publishResults(incoming, results)
	p.metrics.PhaseLatency.WithLabelValues("publish").Observe(time.Since(publishStart).Seconds())

	p.updateBookGauges(evt.Symbol, b)
	p.recordLatency(received)
}

func (p *Processor) newOrder(evt *ringbuffer.OrderEvent) *book.Order {
	id := mintID(evt.OrderID)
	return &book.Order{
		ID:            id,
		Symbol:        evt.Symbol,
		Side:          evt.Side,
		Type:          evt.OrderType,
		Limit:         evt.Price,
		Original:      evt.Quantity,
		Remaining:     evt.Quantity,
		Timestamp:     evt.CallerTime,
		ExchTimestamp: p.now(),
		Status:        book.New,
	}
}

func (p *Processor) rejectEvent(evt *ringbuffer.OrderEvent, reason string) {
	log.Warn().
		Str("symbol", evt.Symbol).
		Str("orderId", string(evt.OrderID)).
		Str("reason", reason).
		Msg("order rejected")

	at := p.now()
	record := wal.MarshalOrderRejected(mintID(evt.OrderID), evt.Symbol, reason, at)
	if _, err := p.walLog.Append(record); err != nil {
		log.Error().Err(err).Msg("wal append failed for rejection")
	}
	if err := p.publisher.Enqueue(publish.Job{
		Topic:   topicOrders,
		Key:     evt.Symbol,
		Payload: encodeOrderRejected(mintID(evt.OrderID), evt.Symbol, reason, at),
	}); err != nil {
		p.metrics.PublishErrors.Inc()
	}
}

func (p *Processor) appendWAL(incoming *book.Order, results matching.MatchResultSet) {
	for _, r := range results.Results {
		if _, err := p.walLog.Append(wal.MarshalMatchExecuted(r)); err != nil {
			log.Error().Err(err).Str("match", r.String()).Msg("wal append failed for match")
		}
	}
	if incoming.Remaining > 0 {
		if _, err := p.walLog.Append(wal.MarshalOrderPlaced(incoming, p.now())); err != nil {
			log.Error().Err(err).Msg("wal append failed for order placed")
		}
	}
}

func (p *Processor) publishResults(incoming *book.Order, results matching.MatchResultSet) {
	for _, r := range results.Results {
		if err := p.publisher.Enqueue(publish.Job{
			Topic:   topicMatches,
			Key:     r.Symbol,
			Payload: encodeMatchExecuted(r),
		}); err != nil {
			p.metrics.PublishErrors.Inc()
		}
	}
	if incoming.Remaining > 0 {
		if err := p.publisher.Enqueue(publish.Job{
			Topic:   topicOrders,
			Key:     incoming.Symbol,
			Payload: encodeOrderPlaced(incoming),
		}); err != nil {
			p.metrics.PublishErrors.Inc()
		}
	}
}

func (p *Processor) updateBookGauges(symbol string, b *book.OrderBook) {
	p.metrics.BookDepth.WithLabelValues(symbol, "bid").Set(float64(b.BidDepth()))
	p.metrics.BookDepth.WithLabelValues(symbol, "ask").Set(float64(b.AskDepth()))
	p.metrics.BookLevelCount.WithLabelValues(symbol, "bid").Set(float64(b.BidLevelCount()))
	p.metrics.BookLevelCount.WithLabelValues(symbol, "ask").Set(float64(b.AskLevelCount()))
	p.metrics.RingUtilization.Set(p.ring.Utilization())
}

// recordLatency observes end-to-end latency from when the producer stamped
// the event (spec §4.4 step 8/§8: "from event.received_nanos to now"),
// including time spent waiting in the ring buffer before this goroutine
// claimed it.
func (p *Processor) recordLatency(received time.Time) {
	p.metrics.EndToEndLatency.WithLabelValues().Observe(time.Since(received).Seconds())
}

// checkInvariants asserts quantity conservation: every MatchResult's
// quantity is positive and the sum of fills never exceeds what the taker
// could have consumed. A violation is fatal (spec §7/§8).
func (p *Processor) checkInvariants(incoming *book.Order, results matching.MatchResultSet) {
	var total uint64
	for _, r := range results.Results {
		if r.Quantity == 0 {
			log.Error().Str("match", r.String()).Msg("zero-quantity fill")
			p.fatal(ErrInvariantViolation, incoming)
			return
		}
		total += r.Quantity
	}
	if total != results.FilledTotal {
		p.fatal(ErrInvariantViolation, incoming)
		return
	}
	if incoming.Remaining+incoming.Filled != incoming.Original {
		p.fatal(ErrInvariantViolation, incoming)
	}
}

func (p *Processor) fatal(err error, order *book.Order) {
	log.Error().Err(err).Str("order", order.String()).Msg("invariant violation: aborting shard")
	if p.onFatal != nil {
		p.onFatal(err)
	}
}
