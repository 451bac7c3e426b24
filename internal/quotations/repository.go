package quotations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fabtrack/fabtrack/internal/platform/db"
	"github.com/fabtrack/fabtrack/internal/sequence"
)

// Repository persists quotations. Methods on the Repository handed to WithTx share one transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextCode(ctx context.Context, prefix string) (string, error)

	CreateHeader(ctx context.Context, q Quotation) (int64, error)
	UpdateHeader(ctx context.Context, q Quotation) error
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetTotals(ctx context.Context, id int64, net, discount, grand decimal.Decimal) error
	SumLineTotals(ctx context.Context, id int64) (decimal.Decimal, error)

	CreateGroup(ctx context.Context, g Group) (int64, error)
	UpdateGroup(ctx context.Context, g Group) error
	DeleteGroup(ctx context.Context, id int64) error

	InsertItem(ctx context.Context, it Item) (int64, error)
	UpdateItem(ctx context.Context, it Item) error
	DeleteItem(ctx context.Context, id int64) error
	NextItemNo(ctx context.Context, groupID int64) (int, error)

	Get(ctx context.Context, id int64) (*Quotation, error)
	// GetForUpdate loads the quotation and holds its header row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
}

type repository struct {
	db   db.Querier
	pool *pgxpool.Pool
	seq  *sequence.Registry
}

// NewRepository returns a pgx backed Repository.
func NewRepository(pool *pgxpool.Pool, seq *sequence.Registry) Repository {
	return &repository{db: pool, pool: pool, seq: seq}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool, seq: r.seq})
	})
}

func (r *repository) NextCode(ctx context.Context, prefix string) (string, error) {
	return r.seq.NextCode(ctx, r.db, prefix)
}

func (r *repository) CreateHeader(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotations (code, status, customer_id, salesperson_id, issued_at, valid_until, notes,
		                        net_subtotal, discount_total, grand_total, created_by, version, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, 0, $9, 1, TRUE, $10, $10)
		RETURNING id
	`, q.Code, q.Status, q.CustomerID, q.SalespersonID, q.IssuedAt, toDate(q.ValidUntil), q.Notes,
		q.DiscountTotal, q.CreatedBy, q.CreatedAt).Scan(&id)
	if err != nil {
		return 0, db.MapError(err, "quotation "+q.Code)
	}
	return id, nil
}

func (r *repository) UpdateHeader(ctx context.Context, q Quotation) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations
		SET customer_id = $2, salesperson_id = $3, valid_until = $4, notes = $5, discount_total = $6,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, q.ID, q.CustomerID, q.SalespersonID, toDate(q.ValidUntil), q.Notes, q.DiscountTotal)
	if err != nil {
		return db.MapError(err, fmt.Sprintf("quotation %d", q.ID))
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, fmt.Sprintf("quotation %d", q.ID))
	}
	return nil
}

// UpdateStatus only succeeds when the stored status still equals from.
func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations SET status = $3, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotations SET is_active = $2, version = version + 1, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, fmt.Sprintf("quotation %d", id))
	}
	return nil
}

func (r *repository) SetTotals(ctx context.Context, id int64, net, discount, grand decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		UPDATE quotations SET net_subtotal = $2, discount_total = $3, grand_total = $4,
		       version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, id, net, discount, grand)
	return err
}

func (r *repository) SumLineTotals(ctx context.Context, id int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.line_total), 0)
		FROM quotation_items i
		JOIN quotation_groups g ON g.id = i.group_id
		WHERE g.quotation_id = $1
	`, id).Scan(&sum)
	return sum, err
}

func (r *repository) CreateGroup(ctx context.Context, g Group) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotation_groups (quotation_id, name, display_order) VALUES ($1, $2, $3) RETURNING id
	`, g.QuotationID, g.Name, g.DisplayOrder).Scan(&id)
	if err != nil {
		return 0, db.MapError(err, "quotation group "+g.Name)
	}
	return id, nil
}

func (r *repository) UpdateGroup(ctx context.Context, g Group) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotation_groups SET name = $2, display_order = $3 WHERE id = $1`, g.ID, g.Name, g.DisplayOrder)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *repository) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotation_groups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *repository) InsertItem(ctx context.Context, it Item) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO quotation_items (group_id, item_no, product_id, product_name, area_priced, quantity, width, height,
		                             unit_price, discount_pct, attributes, line_total, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, it.GroupID, it.ItemNo, it.ProductID, it.ProductName, it.AreaPriced, it.Quantity, it.Width, it.Height,
		it.UnitPrice, it.DiscountPct, attributesOrEmpty(it.Attributes), it.LineTotal, it.Description).Scan(&id)
	if err != nil {
		return 0, db.MapError(err, fmt.Sprintf("quotation item %d", it.ItemNo))
	}
	return id, nil
}

func (r *repository) UpdateItem(ctx context.Context, it Item) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotation_items
		SET quantity = $2, width = $3, height = $4, discount_pct = $5, attributes = $6,
		    line_total = $7, description = $8
		WHERE id = $1
	`, it.ID, it.Quantity, it.Width, it.Height, it.DiscountPct, attributesOrEmpty(it.Attributes), it.LineTotal, it.Description)
	if err != nil {
		return db.MapError(err, fmt.Sprintf("quotation item %d", it.ID))
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repository) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotation_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *repository) NextItemNo(ctx context.Context, groupID int64) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(item_no), 0) + 1 FROM quotation_items WHERE group_id = $1`, groupID).Scan(&next)
	return next, err
}

const quotationColumns = `id, code, status, customer_id, salesperson_id, issued_at, valid_until, notes,
	net_subtotal, discount_total, grand_total, created_by, version, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	return r.load(ctx, id, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Quotation, error) {
	return r.load(ctx, id, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1 FOR UPDATE`)
}

func (r *repository) load(ctx context.Context, id int64, headerQuery string) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx, headerQuery, id))
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("quotation %d", id))
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, quotation_id, name, display_order
		FROM quotation_groups WHERE quotation_id = $1 ORDER BY display_order, id
	`, id)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]int)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.QuotationID, &g.Name, &g.DisplayOrder); err != nil {
			rows.Close()
			return nil, err
		}
		g.Items = []Item{}
		index[g.ID] = len(q.Groups)
		q.Groups = append(q.Groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT i.id, i.group_id, i.item_no, i.product_id, i.product_name, i.area_priced, i.quantity, i.width, i.height,
		       i.unit_price, i.discount_pct, i.attributes, i.line_total, i.description
		FROM quotation_items i
		JOIN quotation_groups g ON g.id = i.group_id
		WHERE g.quotation_id = $1
		ORDER BY i.group_id, i.item_no, i.id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.GroupID, &it.ItemNo, &it.ProductID, &it.ProductName, &it.AreaPriced,
			&it.Quantity, &it.Width, &it.Height, &it.UnitPrice, &it.DiscountPct, &it.Attributes,
			&it.LineTotal, &it.Description); err != nil {
			return nil, err
		}
		if i, ok := index[it.GroupID]; ok {
			q.Groups[i].Items = append(q.Groups[i].Items, it)
		}
	}
	return &q, rows.Err()
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Quotation, int, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.Scope.All {
		var ors []string
		if f.Scope.CreatorID != nil {
			ors = append(ors, "created_by = "+arg(*f.Scope.CreatorID))
		}
		if f.Scope.SalespersonID != nil {
			ors = append(ors, "salesperson_id = "+arg(*f.Scope.SalespersonID))
		}
		if len(ors) == 0 {
			ors = append(ors, "FALSE")
		}
		conditions = append(conditions, "("+strings.Join(ors, " OR ")+")")
	}
	if f.Status != nil {
		conditions = append(conditions, "status = "+arg(*f.Status))
	}
	if f.CustomerID != nil {
		conditions = append(conditions, "customer_id = "+arg(*f.CustomerID))
	}
	if f.Active != nil {
		conditions = append(conditions, "is_active = "+arg(*f.Active))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotations "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	query := fmt.Sprintf("SELECT %s FROM quotations %s ORDER BY issued_at DESC, id DESC LIMIT %s OFFSET %s",
		quotationColumns, where, arg(page.Limit), arg(page.Offset))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, q)
	}
	return list, total, rows.Err()
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	var status string
	var salesperson pgtype.Int8
	var validUntil pgtype.Date
	err := row.Scan(&q.ID, &q.Code, &status, &q.CustomerID, &salesperson, &q.IssuedAt, &validUntil, &q.Notes,
		&q.NetSubtotal, &q.DiscountTotal, &q.GrandTotal, &q.CreatedBy, &q.Version, &q.Active, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Quotation{}, err
	}
	q.Status = Status(status)
	if salesperson.Valid {
		v := salesperson.Int64
		q.SalespersonID = &v
	}
	if validUntil.Valid {
		v := validUntil.Time
		q.ValidUntil = &v
	}
	return q, nil
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func attributesOrEmpty(attrs map[string]string) map[string]string {
	if attrs == nil {
		return map[string]string{}
	}
	return attrs
}
