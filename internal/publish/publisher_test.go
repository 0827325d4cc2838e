package publish

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []Job
	failOn string
}

func (f *fakeSender) Send(_ context.Context, job Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.Topic == f.failOn {
		return assert.AnError
	}
	f.sent = append(f.sent, job)
	return nil
}

func (f *fakeSender) snapshot() []Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Job, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestEnqueue_NonBlockingUntilSaturated(t *testing.T) {
	p := New(1, &fakeSender{})

	require.NoError(t, p.Enqueue(Job{Topic: "matches"}))
	err := p.Enqueue(Job{Topic: "matches"})
	assert.ErrorIs(t, err, ErrSaturated)
}

func TestRun_DrainsQueuedJobsToSender(t *testing.T) {
	sender := &fakeSender{}
	p := New(4, sender)
	var tb tomb.Tomb

	tb.Go(func() error { return p.Run(&tb) })

	require.NoError(t, p.Enqueue(Job{Topic: "matches", Key: "AAPL"}))
	require.NoError(t, p.Enqueue(Job{Topic: "orders", Key: "AAPL"}))

	require.Eventually(t, func() bool {
		return len(sender.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	tb.Kill(nil)
	require.NoError(t, tb.Wait())
}

func TestRun_CountsSendFailures(t *testing.T) {
	sender := &fakeSender{failOn: "matches"}
	p := New(4, sender)
	var tb tomb.Tomb

	tb.Go(func() error { return p.Run(&tb) })

	require.NoError(t, p.Enqueue(Job{Topic: "matches"}))

	require.Eventually(t, func() bool {
		return p.Errors() == 1
	}, time.Second, 5*time.Millisecond)

	tb.Kill(nil)
	require.NoError(t, tb.Wait())
}

func TestRun_DrainsRemainingJobsOnShutdown(t *testing.T) {
	sender := &fakeSender{}
	p := New(4, sender)
	var tb tomb.Tomb

	tb.Go(func() error { return p.Run(&tb) })
	require.NoError(t, p.Enqueue(Job{Topic: "matches"}))

	tb.Kill(nil)
	require.NoError(t, tb.Wait())

	assert.Eventually(t, func() bool {
		return len(sender.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}
