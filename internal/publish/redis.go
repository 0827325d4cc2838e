package publish

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisSender publishes events onto Redis Streams, standing in for spec
// §4.5's "external ordered event stream" abstraction: one stream per topic
// (matches, orders), the symbol carried as a stream field (spec's "key").
//
// Wired in from DimaJoyti-ai-agentic-crypto-browser, which depends on
// redis/go-redis/v9 (this repo adopts only the v9 client; the repo's
// coexisting v8 dependency has no second use site here, see DESIGN.md).
type RedisSender struct {
	client *redis.Client
}

// NewRedisSender wraps an existing Redis client.
func NewRedisSender(client *redis.Client) *RedisSender {
	return &RedisSender{client: client}
}

// Send issues an XAdd to the stream named by job.Topic. Acknowledgement is
// fire-and-forget (spec §9 open question: acks=0 for lowest latency);
// the WAL, not the publisher, is the durable record of the event.
func (s *RedisSender) Send(ctx context.Context, job Job) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: job.Topic,
		Values: map[string]any{
			"key":     job.Key,
			"payload": job.Payload,
		},
	}).Err()
}
