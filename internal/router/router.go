// Package router implements the edge router (C6): a static symbol->shard
// mapping (spec §4.6, REDESIGN: explicit table, not hash-based) and
// pass-through forwarding to the owning shard over a persistent, pooled
// HTTP client.
//
// Grounded on 0xtitan6-polymarket-mm/internal/exchange.Client's resty
// wiring (SetTimeout/SetRetryCount/AddRetryCondition over one shared
// *resty.Client), narrowed to a single fixed policy of one retry on a
// transport error or a 5xx response, since the router has no
// auth/rate-limit concerns of its own.
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/datorot93/matching-engine-sub000/internal/config"
	"github.com/datorot93/matching-engine-sub000/internal/httpapi"
)

// Router forwards order submissions to the shard that owns each symbol.
type Router struct {
	cfg    *config.RouterConfig
	client *resty.Client
}

// New builds a Router from its configuration. The resty client is shared
// across every forwarded request so its underlying transport's connection
// pool is reused (spec §4.6 performance budget).
func New(cfg *config.RouterConfig) *Router {
	client := resty.New().
		SetTimeout(2 * time.Second).
		SetRetryCount(1).
		SetRetryWaitTime(50 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})
	return &Router{cfg: cfg, client: client}
}

// Handler builds the gin engine exposing the mirrored shard surface.
func (rt *Router) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/orders", rt.handleOrder)
	r.POST("/seed/:shardId", rt.handleSeed)
	r.GET("/health", rt.handleHealth)
	return r
}

func (rt *Router) handleOrder(c *gin.Context) {
	var req httpapi.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{Status: "REJECTED", Reason: "malformed request body"})
		return
	}

	shardID, ok := rt.cfg.SymbolShards[req.Symbol]
	if !ok {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "unknown symbol",
		})
		return
	}
	shardAddr, ok := rt.cfg.ShardAddresses[shardID]
	if !ok {
		log.Error().Str("shardId", shardID).Str("symbol", req.Symbol).Msg("symbol maps to unknown shardId")
		c.JSON(http.StatusBadGateway, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "shard unreachable",
		})
		return
	}

	var out httpapi.AcceptedResponse
	resp, err := rt.client.R().
		SetContext(c.Request.Context()).
		SetBody(req).
		SetResult(&out).
		Post(shardAddr + "/orders")
	if err != nil {
		log.Error().Err(err).Str("shard", shardAddr).Msg("forward order failed")
		c.JSON(http.StatusBadGateway, httpapi.RejectedResponse{
			Status: "REJECTED", OrderID: req.OrderID, Reason: "shard unreachable",
		})
		return
	}
	c.Data(resp.StatusCode(), "application/json", resp.Body())
}

func (rt *Router) handleSeed(c *gin.Context) {
	shardID := c.Param("shardId")
	shardAddr, ok := rt.cfg.ShardAddresses[shardID]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "REJECTED", "reason": "unknown shardId"})
		return
	}

	var body httpapi.SeedRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, httpapi.RejectedResponse{Status: "REJECTED", Reason: "malformed request body"})
		return
	}

	resp, err := rt.client.R().
		SetContext(c.Request.Context()).
		SetBody(body).
		Post(shardAddr + "/seed")
	if err != nil {
		log.Error().Err(err).Str("shard", shardAddr).Msg("forward seed failed")
		c.JSON(http.StatusBadGateway, gin.H{"status": "REJECTED", "reason": "shard unreachable"})
		return
	}
	c.Data(resp.StatusCode(), "application/json", resp.Body())
}

func (rt *Router) handleHealth(c *gin.Context) {
	type shardHealth struct {
		Shard  string `json:"shard"`
		Status string `json:"status"`
	}
	results := make([]shardHealth, 0, len(rt.cfg.ShardAddresses))
	for shardID, addr := range rt.cfg.ShardAddresses {
		status := "DOWN"
		if resp, err := rt.client.R().Get(addr + "/health"); err == nil && resp.StatusCode() == http.StatusOK {
			status = "UP"
		}
		results = append(results, shardHealth{Shard: shardID, Status: status})
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "shards": results})
}

// Server builds the http.Server for the router's listener.
func (rt *Router) Server() *http.Server {
	return &http.Server{Addr: fmt.Sprintf(":%d", rt.cfg.HTTPPort), Handler: rt.Handler()}
}
