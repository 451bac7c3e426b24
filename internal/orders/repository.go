package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabtrack/fabtrack/internal/platform/db"
	"github.com/fabtrack/fabtrack/internal/sequence"
)

// Repository persists orders. Methods on the Repository handed to WithTx share one transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextCode(ctx context.Context, prefix string) (string, error)
	Create(ctx context.Context, order Order) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	NextLineNo(ctx context.Context, orderID int64) (int, error)
	Get(ctx context.Context, id int64) (*Order, error)
	// GetForUpdate loads the order and holds its row lock until the transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*Order, error)
	Update(ctx context.Context, id int64, req UpdateOrderRequest) error
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
	UpdateLine(ctx context.Context, line Line) error
	DeleteLine(ctx context.Context, orderID, lineID int64) error
	Touch(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	CountByStatus(ctx context.Context, scope Scope) (map[Status]int, error)
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

func (r *repository) Create(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (code, status, customer_id, fabricator_id, installer_id, requester, supervisor,
		                    start_date, end_date, notes, created_by, issued_at, version, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, TRUE, $13, $13)
		RETURNING id
	`, o.Code, o.Status, o.CustomerID, o.FabricatorID, o.InstallerID, o.Requester, o.Supervisor,
		toDate(o.StartDate), toDate(o.EndDate), o.Notes, o.CreatedBy, o.IssuedAt, o.CreatedAt).Scan(&id)
	if err != nil {
		return 0, db.MapError(err, "order "+o.Code)
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, l Line) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, line_no, environment, model, fabric, width, height, pieces,
		                         fabric_position, control_side, drive, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, l.OrderID, l.LineNo, l.Environment, l.Model, l.Fabric, l.Width, l.Height, l.Pieces,
		l.FabricPosition, l.ControlSide, l.Drive, l.Notes).Scan(&id)
	if err != nil {
		return 0, db.MapError(err, fmt.Sprintf("order line %d", l.LineNo))
	}
	return id, nil
}

func (r *repository) NextLineNo(ctx context.Context, orderID int64) (int, error) {
	var next int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(MAX(line_no), 0) + 1 FROM order_lines WHERE order_id = $1`, orderID).Scan(&next)
	return next, err
}

const orderColumns = `id, code, status, customer_id, fabricator_id, installer_id, requester, supervisor,
	start_date, end_date, notes, created_by, issued_at, version, is_active, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Order, error) {
	return r.load(ctx, id, `SELECT `+orderColumns+` FROM orders WHERE id = $1`)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.load(ctx, id, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`)
}

func (r *repository) load(ctx context.Context, id int64, headerQuery string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, headerQuery, id))
	if err != nil {
		return nil, db.MapError(err, fmt.Sprintf("order %d", id))
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, line_no, environment, model, fabric, width, height, pieces,
		       fabric_position, control_side, drive, notes
		FROM order_lines WHERE order_id = $1 ORDER BY line_no
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		var pos, side, drive string
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNo, &l.Environment, &l.Model, &l.Fabric,
			&l.Width, &l.Height, &l.Pieces, &pos, &side, &drive, &l.Notes); err != nil {
			return nil, err
		}
		l.FabricPosition = FabricPosition(pos)
		l.ControlSide = ControlSide(side)
		l.Drive = Drive(drive)
		o.Lines = append(o.Lines, l)
	}
	return &o, rows.Err()
}

func (r *repository) Update(ctx context.Context, id int64, req UpdateOrderRequest) error {
	query := "UPDATE orders SET updated_at = NOW(), version = version + 1"
	var args []interface{}
	argPos := 1

	set := func(column string, v interface{}) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, v)
		argPos++
	}
	if req.CustomerID != nil {
		set("customer_id", *req.CustomerID)
	}
	if req.FabricatorID != nil {
		set("fabricator_id", *req.FabricatorID)
	}
	if req.InstallerID != nil {
		set("installer_id", *req.InstallerID)
	}
	if req.Requester != nil {
		set("requester", *req.Requester)
	}
	if req.Supervisor != nil {
		set("supervisor", *req.Supervisor)
	}
	if req.StartDate != nil {
		set("start_date", toDate(req.StartDate))
	}
	if req.EndDate != nil {
		set("end_date", toDate(req.EndDate))
	}
	if req.Notes != nil {
		set("notes", *req.Notes)
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return db.MapError(err, fmt.Sprintf("order %d", id))
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, fmt.Sprintf("order %d", id))
	}
	return nil
}

// UpdateStatus only succeeds when the stored status still equals from.
func (r *repository) UpdateStatus(ctx context.Context, id int64, from, to Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status = $3, version = version + 1, updated_at = NOW()
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

func (r *repository) UpdateLine(ctx context.Context, l Line) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE order_lines SET environment = $3, model = $4, fabric = $5, width = $6, height = $7,
		       pieces = $8, fabric_position = $9, control_side = $10, drive = $11, notes = $12
		WHERE id = $1 AND order_id = $2
	`, l.ID, l.OrderID, l.Environment, l.Model, l.Fabric, l.Width, l.Height, l.Pieces,
		l.FabricPosition, l.ControlSide, l.Drive, l.Notes)
	if err != nil {
		return db.MapError(err, fmt.Sprintf("order line %d", l.ID))
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *repository) DeleteLine(ctx context.Context, orderID, lineID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM order_lines WHERE id = $1 AND order_id = $2`, lineID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *repository) Touch(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE orders SET updated_at = NOW(), version = version + 1 WHERE id = $1`, id)
	return err
}

// Delete removes the order only while its stored status still allows it.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND status = ANY($2)`, id, statusNames(DeletableStatuses))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCannotDelete
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET is_active = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, fmt.Sprintf("order %d", id))
	}
	return nil
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	conditions, args := scopeConditions(f.Scope, nil)
	argPos := len(args) + 1

	if f.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *f.Status)
		argPos++
	}
	if f.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *f.CustomerID)
		argPos++
	}
	if f.Active != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *f.Active)
		argPos++
	}
	where := whereClause(conditions)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page.Normalize()
	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY issued_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argPos, argPos+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, o)
	}
	return list, total, rows.Err()
}

func (r *repository) CountByStatus(ctx context.Context, scope Scope) (map[Status]int, error) {
	conditions, args := scopeConditions(scope, []string{"is_active"})
	rows, err := r.db.Query(ctx, "SELECT status, COUNT(*) FROM orders "+whereClause(conditions)+" GROUP BY status", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

func scopeConditions(scope Scope, conditions []string) ([]string, []interface{}) {
	if scope.All {
		return conditions, nil
	}
	var ors []string
	var args []interface{}
	if scope.CreatorID != nil {
		args = append(args, *scope.CreatorID)
		ors = append(ors, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if scope.WorkforceID != nil {
		args = append(args, *scope.WorkforceID)
		ors = append(ors, fmt.Sprintf("fabricator_id = $%d OR installer_id = $%d", len(args), len(args)))
	}
	if len(ors) == 0 {
		return append(conditions, "FALSE"), nil
	}
	return append(conditions, "("+strings.Join(ors, " OR ")+")"), args
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	var fabricator, installer pgtype.Int8
	var start, end pgtype.Date
	err := row.Scan(&o.ID, &o.Code, &status, &o.CustomerID, &fabricator, &installer, &o.Requester, &o.Supervisor,
		&start, &end, &o.Notes, &o.CreatedBy, &o.IssuedAt, &o.Version, &o.Active, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	if fabricator.Valid {
		v := fabricator.Int64
		o.FabricatorID = &v
	}
	if installer.Valid {
		v := installer.Int64
		o.InstallerID = &v
	}
	if start.Valid {
		v := start.Time
		o.StartDate = &v
	}
	if end.Valid {
		v := end.Time
		o.EndDate = &v
	}
	return o, nil
}

func statusNames(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

func toDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}
