package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fabtrack/fabtrack/internal/app"
	"github.com/fabtrack/fabtrack/report"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// healthChecks treats Gotenberg as optional: without it only PDF export degrades.
func healthChecks(pool *pgxpool.Pool, rdb redisPinger, pdf *report.Client) []app.HealthCheck {
	return []app.HealthCheck{
		{Name: "postgres", Check: pool.Ping},
		{Name: "redis", Check: rdb.Ping},
		{Name: "gotenberg", Check: pdf.Ping, Optional: true},
	}
}
