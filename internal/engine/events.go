package engine

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/matching"
	"github.com/datorot93/matching-engine-sub000/internal/ringbuffer"
)

// Outbound Redis Stream topics (spec §4.5/§6): one stream per domain event
// kind, keyed by symbol.
const (
	topicMatches = "matches"
	topicOrders  = "orders"
)

// matchExecutedEvent is the wire shape of the MATCH_EXECUTED event (spec
// §4.5): matchId, taker/maker order ids, symbol, executionPrice,
// executionQuantity, takerSide, timestamp.
type matchExecutedEvent struct {
	MatchID        uint64 `json:"matchId"`
	TakerOrderID   string `json:"takerOrderId"`
	MakerOrderID   string `json:"makerOrderId"`
	Symbol         string `json:"symbol"`
	ExecutionPrice int64  `json:"executionPrice"`
	ExecutionQty   uint64 `json:"executionQuantity"`
	TakerSide      string `json:"takerSide"`
	Timestamp      int64  `json:"timestamp"`
}

// orderPlacedEvent is the wire shape of the ORDER_PLACED event (spec §4.5):
// orderId, symbol, side, price, quantity, timestamp.
type orderPlacedEvent struct {
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Price     int64  `json:"price"`
	Quantity  uint64 `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}

// orderRejectedEvent mirrors the REJECTED response body of spec §6, carried
// onto the orders stream so downstream consumers see rejections too.
type orderRejectedEvent struct {
	Status    string `json:"status"`
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

func encodeMatchExecuted(m matching.MatchResult) []byte {
	payload, err := json.Marshal(matchExecutedEvent{
		MatchID:        m.MatchID,
		TakerOrderID:   string(m.TakerOrderID),
		MakerOrderID:   string(m.MakerOrderID),
		Symbol:         m.Symbol,
		ExecutionPrice: int64(m.Price),
		ExecutionQty:   m.Quantity,
		TakerSide:      m.TakerSide.String(),
		Timestamp:      m.Timestamp.UnixNano(),
	})
	if err != nil {
		log.Error().Err(err).Msg("encode match executed failed")
		return nil
	}
	return payload
}

func encodeOrderPlaced(o *book.Order) []byte {
	payload, err := json.Marshal(orderPlacedEvent{
		OrderID:   string(o.ID),
		Symbol:    o.Symbol,
		Side:      o.Side.String(),
		Price:     int64(o.Limit),
		Quantity:  o.Remaining,
		Timestamp: o.ExchTimestamp.UnixNano(),
	})
	if err != nil {
		log.Error().Err(err).Msg("encode order placed failed")
		return nil
	}
	return payload
}

func encodeOrderRejected(orderID book.OrderID, symbol, reason string, at time.Time) []byte {
	payload, err := json.Marshal(orderRejectedEvent{
		Status:    "REJECTED",
		OrderID:   string(orderID),
		Symbol:    symbol,
		Reason:    reason,
		Timestamp: at.UnixNano(),
	})
	if err != nil {
		log.Error().Err(err).Msg("encode order rejected failed")
		return nil
	}
	return payload
}

// validate checks the three rejection conditions of spec §6: unknown
// symbol for this shard, bad side, non-positive price/quantity. It returns
// the reason string used in both the WAL record and the outbound event.
func validate(evt *ringbuffer.OrderEvent, symbols map[string]struct{}) (string, bool) {
	if _, ok := symbols[evt.Symbol]; !ok {
		return "unknown symbol for this shard", false
	}
	if evt.Side != book.Buy && evt.Side != book.Sell {
		return "bad side", false
	}
	if evt.Price <= 0 {
		return "non-positive price", false
	}
	if evt.Quantity == 0 {
		return "non-positive quantity", false
	}
	return "", true
}
