// Package publish implements the non-blocking outbound event fan-out of
// spec §4.5: enqueue is O(microseconds) and never blocks the matching
// thread; the actual network send happens on a separate background
// worker that may block on I/O freely.
//
// Grounded on fenrir/internal/worker.go's WorkerPool (bounded task channel,
// select-on-shutdown idiom), generalized from "pool of connection workers"
// to "single outbound-event worker draining a bounded job channel".
package publish

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// ErrSaturated is returned by Enqueue when the outbound buffer is full.
// The matching pipeline increments an error counter and proceeds; the WAL
// retains the durable record regardless (spec §4.5/§7).
var ErrSaturated = errors.New("publish: outbound buffer saturated")

// Job is one (topic, key, payload) outbound event.
type Job struct {
	Topic   string
	Key     string
	Payload []byte
}

// Sender performs the actual network transmission for one Job. Errors are
// logged and counted by the worker; they never propagate to Enqueue's
// caller, which has already returned by the time Sender runs.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// Publisher is a bounded, non-blocking outbound queue backed by a single
// background worker.
type Publisher struct {
	jobs   chan Job
	sender Sender

	errors atomic.Int64
}

// New creates a Publisher with the given outbound buffer capacity.
func New(capacity int, sender Sender) *Publisher {
	return &Publisher{
		jobs:   make(chan Job, capacity),
		sender: sender,
	}
}

// Enqueue submits job without blocking. If the outbound buffer is full it
// returns ErrSaturated immediately; the caller must not retry on the hot
// path (spec §4.5).
func (p *Publisher) Enqueue(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrSaturated
	}
}

// Errors returns the count of send failures observed by the worker. It is
// not exported as a metric: matching_publish_errors_total counts only
// Enqueue refusals.
func (p *Publisher) Errors() int64 { return p.errors.Load() }

// Run drains jobs on a single background goroutine until t is dying. It is
// meant to be supervised by a tomb.Tomb alongside the shard's other
// non-hot-path goroutines (spec §5 "background threads").
func (p *Publisher) Run(t *tomb.Tomb) error {
	ctx := t.Context(nil)
	for {
		select {
		case <-t.Dying():
			p.drain(ctx)
			return nil
		case job := <-p.jobs:
			p.send(ctx, job)
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case job := <-p.jobs:
			p.send(ctx, job)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, job Job) {
	if err := p.sender.Send(ctx, job); err != nil {
		p.errors.Add(1)
		log.Error().Err(err).Str("topic", job.Topic).Str("key", job.Key).Msg("publish failed")
	}
}
