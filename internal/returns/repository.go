package returns

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/db"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Return, int, error)
	Get(ctx context.Context, id int64) (ReturnWithLines, error)
}

type TxRepository interface {
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Return, error)
	DocumentExists(ctx context.Context, kind Kind, documentID int64) (bool, error)
	DeleteReturn(ctx context.Context, id int64) error
	Ledger() ledger.TxRepository
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO returns (code, kind, document_id, warehouse_id, date, notes, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8) RETURNING id`,
		ret.Code, ret.Kind, ret.DocumentID, ret.WarehouseID, ret.Date, ret.Notes, ret.CreatedBy, ret.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO return_lines (return_id, product_id, qty, unit_price)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		line.ReturnID, line.ProductID, line.Qty, line.UnitPrice).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Return, error) {
	var ret Return
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, kind, document_id, warehouse_id, date, COALESCE(notes, ''), created_by, created_at
		 FROM returns WHERE id = $1 FOR UPDATE`, id).
		Scan(&ret.ID, &ret.Code, &ret.Kind, &ret.DocumentID, &ret.WarehouseID, &ret.Date, &ret.Notes, &ret.CreatedBy, &ret.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Return{}, httpx.ErrNotFound
	}
	return ret, err
}

func (r *txRepository) DocumentExists(ctx context.Context, kind Kind, documentID int64) (bool, error) {
	table := "sales"
	if kind == KindPurchase {
		table = "purchases"
	}
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, documentID).Scan(&exists)
	return exists, err
}

func (r *txRepository) DeleteReturn(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM return_lines WHERE return_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM returns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Return, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if filters.Kind != "" {
		n++
		where += ` AND r.kind = $` + strconv.Itoa(n)
		args = append(args, filters.Kind)
	}
	if filters.WarehouseID > 0 {
		n++
		where += ` AND r.warehouse_id = $` + strconv.Itoa(n)
		args = append(args, filters.WarehouseID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM returns r`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT r.id, r.code, r.kind, r.document_id, r.warehouse_id, w.name, r.date, COALESCE(r.notes, ''), r.created_by, r.created_at
		FROM returns r
		JOIN warehouses w ON w.id = r.warehouse_id` + where + ` ORDER BY r.id DESC`
	n++
	query += ` LIMIT $` + strconv.Itoa(n)
	args = append(args, filters.Limit)
	n++
	query += ` OFFSET $` + strconv.Itoa(n)
	args = append(args, (filters.Page-1)*filters.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Return
	for rows.Next() {
		var ret Return
		if err := rows.Scan(&ret.ID, &ret.Code, &ret.Kind, &ret.DocumentID, &ret.WarehouseID, &ret.WarehouseName, &ret.Date, &ret.Notes, &ret.CreatedBy, &ret.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, ret)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (ReturnWithLines, error) {
	var ret ReturnWithLines
	err := r.pool.QueryRow(ctx,
		`SELECT r.id, r.code, r.kind, r.document_id, r.warehouse_id, w.name, r.date, COALESCE(r.notes, ''), r.created_by, r.created_at
		 FROM returns r
		 JOIN warehouses w ON w.id = r.warehouse_id
		 WHERE r.id = $1`, id).
		Scan(&ret.ID, &ret.Code, &ret.Kind, &ret.DocumentID, &ret.WarehouseID, &ret.WarehouseName, &ret.Date, &ret.Notes, &ret.CreatedBy, &ret.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ReturnWithLines{}, httpx.ErrNotFound
	}
	if err != nil {
		return ReturnWithLines{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.return_id, l.product_id, p.name, l.qty, l.unit_price
		 FROM return_lines l
		 JOIN products p ON p.id = l.product_id
		 WHERE l.return_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return ReturnWithLines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ReturnID, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPrice); err != nil {
			return ReturnWithLines{}, err
		}
		ret.Lines = append(ret.Lines, l)
	}
	return ret, rows.Err()
}
