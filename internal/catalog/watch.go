package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChangeChannel is the Postgres channel the products trigger notifies with the changed id.
const ChangeChannel = "catalog_products"

type notificationSource interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Watch keeps the cache in step with product updates until ctx ends. It holds one
// connection out of the pool for LISTEN and reconnects after retryDelay when it drops.
// Every (re)connect flushes the cache, since changes made while disconnected were missed.
func (s *Service) Watch(ctx context.Context, pool *pgxpool.Pool, retryDelay time.Duration) {
	if s.cache == nil {
		return
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	for {
		err := s.listen(ctx, pool)
		if ctx.Err() != nil {
			return
		}
		if s.logger != nil {
			s.logger.Warn("catalog change listener stopped", slog.Any("error", err), slog.Duration("retry_in", retryDelay))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}
}

func (s *Service) listen(ctx context.Context, pool *pgxpool.Pool) error {
	pooled, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("flush catalog cache: %w", err)
	}
	return s.consume(ctx, conn)
}

func (s *Service) consume(ctx context.Context, src notificationSource) error {
	for {
		n, err := src.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.HandleChange(ctx, n.Payload)
	}
}

// HandleChange drops the cache entry of the product id carried by a change notification.
func (s *Service) HandleChange(ctx context.Context, payload string) {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("catalog change with invalid payload", slog.String("payload", payload))
		}
		return
	}
	if err := s.Invalidate(ctx, id); err != nil {
		s.warn("catalog cache invalidate", id, err)
	}
}

// Flush drops every cached product.
func (s *Service) Flush(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	iter := s.cache.Scan(ctx, 0, cacheKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Del(ctx, keys...).Err()
}
