package adjustments

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

// Repository is the persistence port for adjustments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Adjustment, int, error)
	Get(ctx context.Context, id int64) (AdjustmentWithLines, error)
}

// TxRepository is the transactional slice used by create and delete. Ledger
// returns a ledger repository bound to the same transaction so document rows
// and stock deltas commit together.
type TxRepository interface {
	InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Adjustment, error)
	DeleteAdjustment(ctx context.Context, id int64) error
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

func (r *txRepository) InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO adjustments (code, warehouse_id, date, notes, created_by, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6) RETURNING id`,
		adj.Code, adj.WarehouseID, adj.Date, adj.Notes, adj.CreatedBy, adj.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO adjustment_lines (adjustment_id, product_id, qty, notes)
		 VALUES ($1, $2, $3, NULLIF($4, '')) RETURNING id`,
		line.AdjustmentID, line.ProductID, line.Qty, line.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Adjustment, error) {
	var a Adjustment
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, warehouse_id, date, COALESCE(notes, ''), created_by, created_at
		 FROM adjustments WHERE id = $1 FOR UPDATE`, id).
		Scan(&a.ID, &a.Code, &a.WarehouseID, &a.Date, &a.Notes, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Adjustment{}, httpx.ErrNotFound
	}
	return a, err
}

func (r *txRepository) DeleteAdjustment(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM adjustment_lines WHERE adjustment_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM adjustments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Adjustment, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if filters.WarehouseID > 0 {
		n++
		where += ` AND a.warehouse_id = $` + strconv.Itoa(n)
		args = append(args, filters.WarehouseID)
	}
	if !filters.Date.IsZero() {
		n++
		where += ` AND a.date = $` + strconv.Itoa(n)
		args = append(args, filters.Date)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM adjustments a`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT a.id, a.code, a.warehouse_id, w.name, a.date, COALESCE(a.notes, ''), a.created_by, a.created_at
		FROM adjustments a
		JOIN warehouses w ON w.id = a.warehouse_id` + where + ` ORDER BY a.id DESC`
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

	var out []Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.Code, &a.WarehouseID, &a.WarehouseName, &a.Date, &a.Notes, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (AdjustmentWithLines, error) {
	var a AdjustmentWithLines
	err := r.pool.QueryRow(ctx,
		`SELECT a.id, a.code, a.warehouse_id, w.name, a.date, COALESCE(a.notes, ''), a.created_by, a.created_at
		 FROM adjustments a
		 JOIN warehouses w ON w.id = a.warehouse_id
		 WHERE a.id = $1`, id).
		Scan(&a.ID, &a.Code, &a.WarehouseID, &a.WarehouseName, &a.Date, &a.Notes, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return AdjustmentWithLines{}, httpx.ErrNotFound
	}
	if err != nil {
		return AdjustmentWithLines{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.adjustment_id, l.product_id, p.name, l.qty, COALESCE(l.notes, '')
		 FROM adjustment_lines l
		 JOIN products p ON p.id = l.product_id
		 WHERE l.adjustment_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return AdjustmentWithLines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.AdjustmentID, &l.ProductID, &l.ProductName, &l.Qty, &l.Notes); err != nil {
			return AdjustmentWithLines{}, err
		}
		a.Lines = append(a.Lines, l)
	}
	return a, rows.Err()
}
