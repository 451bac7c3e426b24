// Package sequence issues gap-free, human readable document codes such as PED-0000042.
//
// Each series owns one row in document_counters. NextCode locks that row with
// SELECT ... FOR UPDATE inside the caller's transaction, so the increment commits
// or rolls back together with the document that consumed it.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fabtrack/fabtrack/internal/platform/db"
	"github.com/fabtrack/fabtrack/internal/shared"
)

const (
	// PrefixOrder numbers service orders.
	PrefixOrder = "PED"
	// PrefixQuotation numbers quotations.
	PrefixQuotation = "COT"
	// DefaultPadWidth is used when a counter row carries no width.
	DefaultPadWidth = 7
)

// Counter mirrors a document_counters row.
type Counter struct {
	Prefix    string    `json:"prefix"`
	LastValue int64     `json:"last_value"`
	PadWidth  int       `json:"pad_width"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Observer is notified after a code has been reserved. The reservation is only
// durable once the surrounding transaction commits.
type Observer interface {
	SequenceReserved(prefix string)
}

// Registry is stateless; all state lives in the counter table.
type Registry struct {
	observer Observer
}

// NewRegistry constructs a Registry. observer may be nil.
func NewRegistry(observer Observer) *Registry {
	return &Registry{observer: observer}
}

// NextCode reserves the next code for prefix using q, which must be the transaction
// that will also insert the document.
func (r *Registry) NextCode(ctx context.Context, q db.Querier, prefix string) (string, error) {
	prefix = normalizePrefix(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: series prefix required", shared.ErrValidation)
	}

	var last int64
	var width int
	err := q.QueryRow(ctx, `SELECT last_value, pad_width FROM document_counters WHERE prefix = $1 FOR UPDATE`, prefix).Scan(&last, &width)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: no sequence counter registered for series %s", shared.ErrConfiguration, prefix)
		}
		return "", fmt.Errorf("sequence: lock counter %s: %w", prefix, err)
	}

	next := last + 1
	tag, err := q.Exec(ctx, `UPDATE document_counters SET last_value = $2, updated_at = NOW() WHERE prefix = $1`, prefix, next)
	if err != nil {
		return "", fmt.Errorf("sequence: advance counter %s: %w", prefix, err)
	}
	if tag.RowsAffected() != 1 {
		return "", fmt.Errorf("%w: counter %s vanished while locked", shared.ErrConfiguration, prefix)
	}

	if r != nil && r.observer != nil {
		r.observer.SequenceReserved(prefix)
	}
	return Format(prefix, next, width), nil
}

// Register creates a counter for a new series. It is a deployment step and is never
// invoked implicitly by NextCode.
func (r *Registry) Register(ctx context.Context, q db.Querier, prefix string, padWidth int) (Counter, error) {
	prefix = normalizePrefix(prefix)
	if prefix == "" {
		return Counter{}, fmt.Errorf("%w: series prefix required", shared.ErrValidation)
	}
	if padWidth <= 0 {
		padWidth = DefaultPadWidth
	}
	var c Counter
	err := q.QueryRow(ctx, `
		INSERT INTO document_counters (prefix, last_value, pad_width, updated_at)
		VALUES ($1, 0, $2, NOW())
		RETURNING prefix, last_value, pad_width, updated_at
	`, prefix, padWidth).Scan(&c.Prefix, &c.LastValue, &c.PadWidth, &c.UpdatedAt)
	if err != nil {
		return Counter{}, db.MapError(err, "sequence counter "+prefix)
	}
	return c, nil
}

// List returns all registered counters without locking them.
func (r *Registry) List(ctx context.Context, q db.Querier) ([]Counter, error) {
	rows, err := q.Query(ctx, `SELECT prefix, last_value, pad_width, updated_at FROM document_counters ORDER BY prefix`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []Counter
	for rows.Next() {
		var c Counter
		if err := rows.Scan(&c.Prefix, &c.LastValue, &c.PadWidth, &c.UpdatedAt); err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}

// Format renders PREFIX-000...n, padded to width digits.
func Format(prefix string, n int64, width int) string {
	if width <= 0 {
		width = DefaultPadWidth
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, n)
}

func normalizePrefix(prefix string) string {
	return strings.ToUpper(strings.TrimSpace(prefix))
}
