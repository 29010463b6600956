package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/opsmind/ticket-service/internal/domain"
	"github.com/opsmind/ticket-service/internal/persistence"
)

// TicketCache is a read-through cache for single-ticket fetches. Every
// mutation path must invalidate the entry. A nil cache is a no-op.
type TicketCache struct {
	redis  *persistence.Redis
	ttl    time.Duration
	logger *zap.Logger
}

// NewTicketCache builds the cache over the shared redis client.
func NewTicketCache(redis *persistence.Redis, ttl time.Duration, logger *zap.Logger) *TicketCache {
	return &TicketCache{redis: redis, ttl: ttl, logger: logger}
}

func (c *TicketCache) enabled() bool {
	return c != nil && c.redis != nil && c.redis.Client != nil
}

func cacheKey(id string) string {
	return "ticket:" + id
}

// Get returns the cached ticket if present.
func (c *TicketCache) Get(ctx context.Context, id string) (*domain.Ticket, bool) {
	if !c.enabled() {
		return nil, false
	}
	raw, err := c.redis.Client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		c.logger.Warn("drop corrupt cache entry", zap.String("ticket_id", id), zap.Error(err))
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &ticket, true
}

// Set stores the ticket with the configured TTL. Failures are logged only;
// the cache is never load-bearing.
func (c *TicketCache) Set(ctx context.Context, ticket *domain.Ticket) {
	if !c.enabled() || ticket == nil {
		return
	}
	raw, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	if err := c.redis.Client.Set(ctx, cacheKey(ticket.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

// Invalidate removes the cached entry.
func (c *TicketCache) Invalidate(ctx context.Context, id string) {
	if !c.enabled() {
		return
	}
	if err := c.redis.Client.Del(ctx, cacheKey(id)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", zap.String("ticket_id", id), zap.Error(err))
	}
}
