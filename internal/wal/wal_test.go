package wal

import (
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/matching"
)

func openTestLog(t *testing.T, size int64) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	l, err := Open(path, size)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestAppend_WritesLengthPrefixedRecordsSequentially(t *testing.T) {
	l := openTestLog(t, 4096)

	pos0, err := l.Append([]byte("first"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos0)

	pos1, err := l.Append([]byte("second"))
	require.NoError(t, err)
	assert.Equal(t, pos0+lengthPrefixSize+int64(len("first")), pos1)
}

func TestAppend_ReturnsErrSaturatedWhenFileFull(t *testing.T) {
	l := openTestLog(t, 16)

	_, err := l.Append(make([]byte, 20))
	assert.ErrorIs(t, err, ErrSaturated)
}

func TestMarshalOrderPlaced_RoundTripsCoreFields(t *testing.T) {
	o := &book.Order{ID: "o1", Symbol: "AAPL", Side: book.Buy, Limit: 10000, Remaining: 50}
	at := time.Unix(100, 0)

	record := MarshalOrderPlaced(o, at)

	assert.Equal(t, byte(EventOrderPlaced), record[0])
	gotNanos := int64(binary.BigEndian.Uint64(record[1:9]))
	assert.Equal(t, at.UnixNano(), gotNanos)
}

func TestMarshalMatchExecuted_EncodesMatchID(t *testing.T) {
	m := matching.MatchResult{
		MatchID: 42, TakerOrderID: "t1", MakerOrderID: "m1",
		Symbol: "AAPL", Price: 10000, Quantity: 10, Timestamp: time.Unix(1, 0),
	}

	record := MarshalMatchExecuted(m)

	assert.Equal(t, byte(EventMatchExecuted), record[0])
	gotMatchID := binary.BigEndian.Uint64(record[9:17])
	assert.Equal(t, uint64(42), gotMatchID)
}

func TestForceAndClose_DoNotError(t *testing.T) {
	l := openTestLog(t, 4096)
	_, err := l.Append([]byte("x"))
	require.NoError(t, err)
	assert.NoError(t, l.Force())
	assert.NoError(t, l.Close())
}
