package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PanicsOnNonPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() { New(3) })
}

func TestClaimPublishPoll_RoundTrip(t *testing.T) {
	r := New(8)

	seq, err := r.Claim()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	slot := r.Slot(seq)
	slot.Symbol = "AAPL"
	slot.Quantity = 10
	r.Publish(seq)

	batch, ok := r.Poll(0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), batch.Start)
	assert.Equal(t, uint64(0), batch.End)
	assert.Equal(t, "AAPL", r.Slot(0).Symbol)
}

func TestPoll_ReturnsFalseWhenNothingPublished(t *testing.T) {
	r := New(8)
	_, ok := r.Poll(0)
	assert.False(t, ok)
}

func TestPoll_BatchesContiguousSequences(t *testing.T) {
	r := New(8)
	for i := 0; i < 4; i++ {
		seq, err := r.Claim()
		require.NoError(t, err)
		r.Slot(seq).Quantity = uint64(i)
		r.Publish(seq)
	}

	batch, ok := r.Poll(0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), batch.Start)
	assert.Equal(t, uint64(3), batch.End)
	assert.Equal(t, 4, batch.Len())
}

func TestClaim_ReturnsErrBufferFullWhenConsumerLags(t *testing.T) {
	r := New(2)

	s0, err := r.Claim()
	require.NoError(t, err)
	r.Publish(s0)
	s1, err := r.Claim()
	require.NoError(t, err)
	r.Publish(s1)

	_, err = r.Claim()
	assert.ErrorIs(t, err, ErrBufferFull)

	r.Advance(s0)
	_, err = r.Claim()
	assert.NoError(t, err, "claiming must succeed again once the consumer advances")
}

func TestAdvance_FreesSlotsForReclaim(t *testing.T) {
	r := New(2)
	s0, _ := r.Claim()
	r.Publish(s0)
	batch, ok := r.Poll(0)
	require.True(t, ok)
	r.Advance(batch.End)

	util := r.Utilization()
	assert.Equal(t, 0.0, util)
}

func TestWaitFor_ReturnsFalseWhenDoneClosed(t *testing.T) {
	r := New(8)
	done := make(chan struct{})
	close(done)

	_, ok := r.WaitFor(0, done)
	assert.False(t, ok)
}
