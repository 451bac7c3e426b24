//go:build integration

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabtrack/fabtrack/internal/platform/db/dbtest"
)

func TestPriceUpdateReachesLookupThroughListener(t *testing.T) {
	pool := dbtest.NewPool(t)
	_, client := newRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var id int64
	require.NoError(t, pool.QueryRow(ctx, `
		INSERT INTO products (code, name, unit, base_price) VALUES ('MOT-01', 'Motor kit', 'UN', 250) RETURNING id`).Scan(&id))

	svc := NewService(NewRepository(pool), client, time.Hour, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Watch(ctx, pool, 100*time.Millisecond)
	}()

	p, err := svc.Lookup(ctx, id)
	require.NoError(t, err)
	require.True(t, p.BasePrice.Equal(decimal.RequireFromString("250")))

	_, err = pool.Exec(ctx, `UPDATE products SET base_price = 275, updated_at = NOW() WHERE id = $1`, id)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		p, err := svc.Lookup(ctx, id)
		return err == nil && p.BasePrice.Equal(decimal.RequireFromString("275"))
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}
