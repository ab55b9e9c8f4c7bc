package purchases

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/db"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Purchase, int, error)
	Get(ctx context.Context, id int64) (PurchaseWithLines, error)
}

// TxRepository is the transactional slice behind create, edit, status change
// and delete. GetForUpdate locks the purchase row so concurrent transitions
// serialize; only one caller observes the old status.
type TxRepository interface {
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Purchase, error)
	Lines(ctx context.Context, purchaseID int64) ([]Line, error)
	UpdateHeader(ctx context.Context, p Purchase) error
	SetStatus(ctx context.Context, id int64, status Status) error
	DeleteLines(ctx context.Context, purchaseID int64) error
	DeletePurchase(ctx context.Context, id int64) error
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

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchases (code, supplier_id, warehouse_id, date, status, notes, total, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $9) RETURNING id`,
		p.Code, p.SupplierID, p.WarehouseID, p.Date, p.Status, p.Notes, p.Total, p.CreatedBy, p.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_lines (purchase_id, product_id, qty, unit_cost, total)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		line.PurchaseID, line.ProductID, line.Qty, line.UnitCost, line.Total).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, supplier_id, warehouse_id, date, status, COALESCE(notes, ''), total, created_by, created_at, updated_at
		 FROM purchases WHERE id = $1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Code, &p.SupplierID, &p.WarehouseID, &p.Date, &p.Status, &p.Notes, &p.Total, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, httpx.ErrNotFound
	}
	return p, err
}

func (r *txRepository) Lines(ctx context.Context, purchaseID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, purchase_id, product_id, qty, unit_cost, total
		 FROM purchase_lines WHERE purchase_id = $1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.ProductID, &l.Qty, &l.UnitCost, &l.Total); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepository) UpdateHeader(ctx context.Context, p Purchase) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchases SET supplier_id = $1, warehouse_id = $2, date = $3, notes = NULLIF($4, ''), total = $5, updated_at = $6 WHERE id = $7`,
		p.SupplierID, p.WarehouseID, p.Date, p.Notes, p.Total, time.Now(), p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchases SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, purchaseID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_lines WHERE purchase_id = $1`, purchaseID)
	return err
}

func (r *txRepository) DeletePurchase(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if filters.SupplierID > 0 {
		n++
		where += ` AND p.supplier_id = $` + strconv.Itoa(n)
		args = append(args, filters.SupplierID)
	}
	if filters.WarehouseID > 0 {
		n++
		where += ` AND p.warehouse_id = $` + strconv.Itoa(n)
		args = append(args, filters.WarehouseID)
	}
	if filters.Status != "" {
		n++
		where += ` AND p.status = $` + strconv.Itoa(n)
		args = append(args, filters.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT p.id, p.code, p.supplier_id, s.name, p.warehouse_id, w.name, p.date, p.status, COALESCE(p.notes, ''), p.total, p.created_by, p.created_at, p.updated_at
		FROM purchases p
		JOIN suppliers s ON s.id = p.supplier_id
		JOIN warehouses w ON w.id = p.warehouse_id` + where + ` ORDER BY p.id DESC`
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

	var out []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.Code, &p.SupplierID, &p.SupplierName, &p.WarehouseID, &p.WarehouseName, &p.Date, &p.Status, &p.Notes, &p.Total, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (PurchaseWithLines, error) {
	var p PurchaseWithLines
	err := r.pool.QueryRow(ctx,
		`SELECT p.id, p.code, p.supplier_id, s.name, p.warehouse_id, w.name, p.date, p.status, COALESCE(p.notes, ''), p.total, p.created_by, p.created_at, p.updated_at
		 FROM purchases p
		 JOIN suppliers s ON s.id = p.supplier_id
		 JOIN warehouses w ON w.id = p.warehouse_id
		 WHERE p.id = $1`, id).
		Scan(&p.ID, &p.Code, &p.SupplierID, &p.SupplierName, &p.WarehouseID, &p.WarehouseName, &p.Date, &p.Status, &p.Notes, &p.Total, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseWithLines{}, httpx.ErrNotFound
	}
	if err != nil {
		return PurchaseWithLines{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.purchase_id, l.product_id, pr.name, l.qty, l.unit_cost, l.total
		 FROM purchase_lines l
		 JOIN products pr ON pr.id = l.product_id
		 WHERE l.purchase_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return PurchaseWithLines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitCost, &l.Total); err != nil {
			return PurchaseWithLines{}, err
		}
		p.Lines = append(p.Lines, l)
	}
	return p, rows.Err()
}
