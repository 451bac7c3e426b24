// Package catalog looks up product pricing data for quotation items.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "catalog:product:"

// Service resolves products through a Redis cache in front of the repository.
// Concurrent misses for the same product collapse into one repository read.
type Service struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs the catalog service. cache may be nil to disable caching.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Lookup returns the product as currently priced.
func (s *Service) Lookup(ctx context.Context, productID int64) (Product, error) {
	if p, ok := s.fromCache(ctx, productID); ok {
		return p, nil
	}

	key := strconv.FormatInt(productID, 10)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		p, err := s.repo.Get(ctx, productID)
		if err != nil {
			return Product{}, err
		}
		s.store(ctx, p)
		return p, nil
	})
	select {
	case <-ctx.Done():
		return Product{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Product{}, res.Err
		}
		return res.Val.(Product), nil
	}
}

// Invalidate drops the cached entry after a catalog price change.
func (s *Service) Invalidate(ctx context.Context, productID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, cacheKey(productID)).Err()
}

func (s *Service) fromCache(ctx context.Context, productID int64) (Product, bool) {
	if s.cache == nil {
		return Product{}, false
	}
	raw, err := s.cache.Get(ctx, cacheKey(productID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.warn("catalog cache get", productID, err)
		}
		return Product{}, false
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		s.warn("catalog cache decode", productID, err)
		return Product{}, false
	}
	return p, true
}

func (s *Service) store(ctx context.Context, p Product) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(p.ID), raw, s.ttl).Err(); err != nil {
		s.warn("catalog cache set", p.ID, err)
	}
}

func (s *Service) warn(msg string, productID int64, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.Int64("product_id", productID), slog.Any("error", err))
	}
}

func cacheKey(productID int64) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, productID)
}
