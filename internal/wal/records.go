package wal

import (
	"encoding/binary"
	"time"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/matching"
)

// EventType tags the kind of domain event stored in the log, mirroring the
// event-type byte of tienpsm-go-trader's persistence.MatchingEvent.
type EventType uint8

const (
	// EventOrderPlaced is written when a limit order comes to rest.
	EventOrderPlaced EventType = iota + 1
	// EventMatchExecuted is written once per emitted fill.
	EventMatchExecuted
	// EventOrderRejected is written for a synthetic validation rejection.
	EventOrderRejected
)

// symbolFieldLen is the fixed width reserved for a symbol in wire records;
// symbols longer than this are truncated (shard symbol sets are short
// tickers in practice).
const symbolFieldLen = 16

func putFixedString(buf []byte, s string) {
	n := copy(buf, s)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
}

// MarshalOrderPlaced encodes an OrderPlaced record: type, timestamp,
// symbol, side, price, quantity, orderId, owner.
func MarshalOrderPlaced(o *book.Order, at time.Time) []byte {
	idLen := len(o.ID)
	ownerLen := len(o.Owner)
	buf := make([]byte, 1+8+symbolFieldLen+1+8+8+2+idLen+2+ownerLen)
	i := 0
	buf[i] = byte(EventOrderPlaced)
	i++
	binary.BigEndian.PutUint64(buf[i:i+8], uint64(at.UnixNano()))
	i += 8
	putFixedString(buf[i:i+symbolFieldLen], o.Symbol)
	i += symbolFieldLen
	buf[i] = byte(o.Side)
	i++
	binary.BigEndian.PutUint64(buf[i:i+8], uint64(o.Limit))
	i += 8
	binary.BigEndian.PutUint64(buf[i:i+8], o.Remaining)
	i += 8
	binary.BigEndian.PutUint16(buf[i:i+2], uint16(idLen))
	i += 2
	copy(buf[i:i+idLen], o.ID)
	i += idLen
	binary.BigEndian.PutUint16(buf[i:i+2], uint16(ownerLen))
	i += 2
	copy(buf[i:i+ownerLen], o.Owner)
	return buf
}

// MarshalMatchExecuted encodes a MatchExecuted record: type, timestamp,
// matchId, symbol, taker/maker order ids, price, quantity, taker side.
func MarshalMatchExecuted(m matching.MatchResult) []byte {
	takerLen := len(m.TakerOrderID)
	makerLen := len(m.MakerOrderID)
	buf := make([]byte, 1+8+8+symbolFieldLen+2+takerLen+2+makerLen+8+8+1)
	i := 0
	buf[i] = byte(EventMatchExecuted)
	i++
	binary.BigEndian.PutUint64(buf[i:i+8], uint64(m.Timestamp.UnixNano()))
	i += 8
	binary.BigEndian.PutUint64(buf[i:i+8], m.MatchID)
	i += 8
	putFixedString(buf[i:i+symbolFieldLen], m.Symbol)
	i += symbolFieldLen
	binary.BigEndian.PutUint16(buf[i:i+2], uint16(takerLen))
	i += 2
	copy(buf[i:i+takerLen], m.TakerOrderID)
	i += takerLen
	binary.BigEndian.PutUint16(buf[i:i+2], uint16(makerLen))
	i += 2
	copy(buf[i:i+makerLen], m.MakerOrderID)
	i += makerLen
	binary.BigEndian.PutUint64(buf[i:i+8], uint64(m.Price))
	i += 8
	binary.BigEndian.PutUint64(buf[i:i+8], m.Quantity)
	i += 8
	buf[i] = byte(m.TakerSide)
	return buf
}

// MarshalOrderRejected encodes an OrderRejected record: type, timestamp,
// symbol, orderId, reason.
func MarshalOrderRejected(orderID book.OrderID, symbol string, reason string, at time.Time) []byte {
	idLen := len(orderID)
	reasonLen := len(reason)
	buf := make([]byte, 1+8+symbolFieldLen+2+idLen+2+reasonLen)
	i := 0
	buf[i] = byte(EventOrderRejected)
	i++
	binary.BigEndian.PutUint64(buf[i:i+8], uint64(at.UnixNano()))
	i += 8
	putFixedString(buf[i:i+symbolFieldLen], symbol)
	i += symbolFieldLen
	binary.BigEndian.PutUint16(buf[i:i+2], uint16(idLen))
	i += 2
	copy(buf[i:i+idLen], orderID)
	i += idLen
	binary.BigEndian.PutUint16(buf[i:i+2], uint16(reasonLen))
	i += 2
	copy(buf[i:i+reasonLen], reason)
	return buf
}
