package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jkimaro/pesaflow/backend/internal/domain"
)

// CachedStore layers a Redis read-through projection over another Store.
// Only QueryByRecipient results are cached; the wrapped store stays the
// single source of truth and the cache entry for a recipient is dropped the
// moment a new transaction is created for them. Cache failures degrade to
// direct queries.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOptions configures the projection cache.
type CacheOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewCachedStore wraps inner with a Redis-backed recipient-feed cache.
func NewCachedStore(inner Store, opts CacheOptions, logger *slog.Logger) *CachedStore {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

func feedKey(recipientID string) string {
	return "pesaflow:feed:" + recipientID
}

// Create delegates to the wrapped store and invalidates the recipient's
// cached projection so the new transaction is observable immediately.
func (c *CachedStore) Create(ctx context.Context, tx domain.Transaction) error {
	if err := c.inner.Create(ctx, tx); err != nil {
		return err
	}
	if err := c.client.Del(ctx, feedKey(tx.Recipient)).Err(); err != nil {
		c.logger.Warn("feed cache invalidation failed", "recipient", tx.Recipient, "error", err)
	}
	return nil
}

// RecordReview delegates to the wrapped store.
func (c *CachedStore) RecordReview(ctx context.Context, review domain.ReviewRecord) error {
	return c.inner.RecordReview(ctx, review)
}

// QueryByRecipient serves the projection from Redis when fresh, falling back
// to the wrapped store and repopulating on miss.
func (c *CachedStore) QueryByRecipient(ctx context.Context, recipientID string) ([]domain.Transaction, error) {
	key := feedKey(recipientID)

	cached, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var result []domain.Transaction
		if err := json.Unmarshal(cached, &result); err == nil {
			return result, nil
		}
		c.logger.Warn("dropping undecodable feed cache entry", "recipient", recipientID)
	} else if err != redis.Nil {
		c.logger.Warn("feed cache read failed", "recipient", recipientID, "error", err)
	}

	result, err := c.inner.QueryByRecipient(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			c.logger.Warn("feed cache write failed", "recipient", recipientID, "error", err)
		}
	}
	return result, nil
}

// Subscribe delegates to the wrapped store when it supports push.
func (c *CachedStore) Subscribe(recipientID string) (<-chan domain.Transaction, func()) {
	if notifier, ok := c.inner.(Notifier); ok {
		return notifier.Subscribe(recipientID)
	}
	ch := make(chan domain.Transaction)
	close(ch)
	return ch, func() {}
}

// VerifyConnectivity probes the wrapped store; the cache is best-effort and
// does not gate health.
func (c *CachedStore) VerifyConnectivity(ctx context.Context) error {
	return c.inner.VerifyConnectivity(ctx)
}

// Close releases the cache client and the wrapped store.
func (c *CachedStore) Close(ctx context.Context) error {
	if err := c.client.Close(); err != nil {
		c.logger.Warn("closing cache client failed", "error", err)
	}
	return c.inner.Close(ctx)
}
