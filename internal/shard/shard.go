// Package shard assembles one matching shard: the ring buffer, the event
// processor (C4), the WAL, the publisher, and the HTTP surface of spec §6.
// The consumer loop runs on its own goroutine pinned with
// runtime.LockOSThread; everything else (HTTP listener, publisher I/O
// worker) is supervised by a tomb.Tomb, grounded on
// saiputravu-Exchange/internal/net/server.go's tomb.WithContext idiom.
package shard

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/datorot93/matching-engine-sub000/internal/book"
	"github.com/datorot93/matching-engine-sub000/internal/config"
	"github.com/datorot93/matching-engine-sub000/internal/engine"
	"github.com/datorot93/matching-engine-sub000/internal/httpapi"
	"github.com/datorot93/matching-engine-sub000/internal/publish"
	"github.com/datorot93/matching-engine-sub000/internal/ringbuffer"
	"github.com/datorot93/matching-engine-sub000/internal/telemetry"
	"github.com/datorot93/matching-engine-sub000/internal/wal"
)

// Shard owns every collaborator of one matching shard and its HTTP
// surfaces (order ingress on HTTPPort, metrics on MetricsPort).
type Shard struct {
	cfg *config.ShardConfig

	ring      *ringbuffer.RingBuffer
	processor *engine.Processor
	walLog    *wal.Log
	publisher *publish.Publisher
	metrics   *telemetry.Registry

	consumerDone chan struct{}
	stopOnce     sync.Once
}

// New wires up a Shard from its configuration. The WAL file is opened and
// the ring buffer allocated eagerly; nothing is running until Run is
// called.
func New(cfg *config.ShardConfig) (*Shard, error) {
	walLog, err := wal.Open(cfg.WALPath, cfg.WALSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.BrokerBootstrap})
	sender := publish.NewRedisSender(redisClient)
	publisher := publish.New(cfg.PublishCapacity, sender)

	metrics := telemetry.NewRegistry(cfg.ShardID)
	ring := ringbuffer.New(cfg.RingBufferSize)

	s := &Shard{
		cfg:          cfg,
		ring:         ring,
		walLog:       walLog,
		publisher:    publisher,
		metrics:      metrics,
		consumerDone: make(chan struct{}),
	}

	s.processor = engine.New(engine.Config{
		Symbols:   cfg.ShardSymbols,
		Ring:      ring,
		WAL:       walLog,
		Publisher: publisher,
		Metrics:   metrics,
		OnFatal:   s.abort,
	})

	return s, nil
}

// abort is the processor's FatalHandler: an invariant violation stops the
// whole shard rather than let the book continue in a corrupted state
// (spec §7).
func (s *Shard) abort(err error) {
	log.Error().Err(err).Str("shardId", s.cfg.ShardID).Msg("shard aborting on invariant violation")
	s.stopConsumer()
}

// stopConsumer closes consumerDone exactly once, whether triggered by a
// fatal invariant violation or by ordinary shutdown.
func (s *Shard) stopConsumer() {
	s.stopOnce.Do(func() { close(s.consumerDone) })
}

// Run starts every shard goroutine and blocks until ctx is cancelled or a
// fatal invariant violation aborts the shard.
func (s *Shard) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	consumerExited := make(chan struct{})
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(consumerExited)
		s.processor.Run(s.consumerDone)
	}()

	t.Go(func() error {
		return s.publisher.Run(t)
	})

	ordersSrv := s.newOrdersServer()
	metricsSrv := s.newMetricsServer()

	t.Go(func() error { return serveUntilDying(t, ordersSrv) })
	t.Go(func() error { return serveUntilDying(t, metricsSrv) })

	select {
	case <-ctx.Done():
	case <-s.consumerDone:
	}
	t.Kill(nil)
	s.stopConsumer()
	<-consumerExited

	_ = t.Wait()
	return s.walLog.Close()
}

func serveUntilDying(t *tomb.Tomb, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case <-t.Dying():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Shard) newOrdersServer() *http.Server {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/orders", s.handleOrder)
	r.POST("/seed", s.handleSeed)
	r.GET("/health", s.handleHealth)
	return &http.Server{Addr: fmt.Sprintf(":%d", s.cfg.HTTPPort), Handler: r}
}

func (s *Shard) newMetricsServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{}))
	return &http.Server{Addr: fmt.Sprintf(":%d", s.cfg.MetricsPort), Handler: mux}
}

// handleOrder implements POST /orders (spec §6): validate synchronously,
// claim a ring buffer slot, publish it for the consumer, and respond
// without waiting for matching to complete.
func (s *Shard) handleOrder(c *gin.Context) {
	var req httpapi.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "malformed request body",
		})
		return
	}

	side, ok := parseSide(req.Side)
	if !ok {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "bad side",
		})
		return
	}
	if _, ok := s.symbol(req.Symbol); !ok {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "unknown symbol for this shard",
		})
		return
	}
	if req.Price <= 0 || req.Quantity == 0 {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "non-positive price/quantity",
		})
		return
	}

	seq, err := s.ring.Claim()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, httpapi.BusyResponse{
			Status: "BUSY", Reason: "ring buffer saturated",
		})
		return
	}

	now := time.Now()
	callerTime := now
	if req.Timestamp != 0 {
		callerTime = time.UnixMilli(req.Timestamp)
	}
	slot := s.ring.Slot(seq)
	*slot = ringbuffer.OrderEvent{
		ReceivedNanos: now.UnixNano(),
		OrderID:       book.OrderID(req.OrderID),
		Symbol:        req.Symbol,
		Side:          side,
		OrderType:     book.Limit,
		Price:         book.Price(req.Price),
		Quantity:      req.Quantity,
		CallerTime:    callerTime,
	}
	s.ring.Publish(seq)

	c.JSON(http.StatusOK, httpapi.AcceptedResponse{
		Status:    "ACCEPTED",
		OrderID:   req.OrderID,
		ShardID:   s.cfg.ShardID,
		Timestamp: now.UnixMilli(),
	})
}

// handleSeed implements POST /seed (spec §6): places orders directly into
// their books, bypassing the ring buffer entirely.
func (s *Shard) handleSeed(c *gin.Context) {
	var req httpapi.SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{Status: "REJECTED", Reason: "malformed request body"})
		return
	}

	seeded := 0
	for _, o := range req.Orders {
		side, ok := parseSide(o.Side)
		if !ok {
			continue
		}
		callerTime := time.Now()
		if o.Timestamp != 0 {
			callerTime = time.UnixMilli(o.Timestamp)
		}
		order := &book.Order{
			ID:        book.OrderID(o.OrderID),
			Symbol:    o.Symbol,
			Side:      side,
			Type:      book.Limit,
			Limit:     book.Price(o.Price),
			Original:  o.Quantity,
			Remaining: o.Quantity,
			Timestamp: callerTime,
			Status:    book.New,
		}
		if err := s.processor.Seed(order); err != nil {
			log.Warn().Err(err).Str("orderId", o.OrderID).Msg("seed order rejected")
			continue
		}
		seeded++
	}

	c.JSON(http.StatusOK, httpapi.SeedResponse{Seeded: seeded})
}

func (s *Shard) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, httpapi.HealthResponse{Status: "UP", ShardID: s.cfg.ShardID})
}

func (s *Shard) symbol(symbol string) (string, bool) {
	for _, sym := range s.cfg.ShardSymbols {
		if sym == symbol {
			return sym, true
		}
	}
	return "", false
}

func parseSide(raw string) (book.Side, bool) {
	switch raw {
	case "BUY":
		return book.Buy, true
	case "SELL":
		return book.Sell, true
	default:
		return book.Buy, false
	}
}
