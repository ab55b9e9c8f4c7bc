package sales

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
	List(ctx context.Context, filters ListFilters) ([]Sale, int, error)
	Get(ctx context.Context, id int64) (SaleWithLines, error)
}

type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	HasReturns(ctx context.Context, saleID int64) (bool, error)
	UpdateHeader(ctx context.Context, sale Sale) error
	DeleteLines(ctx context.Context, saleID int64) error
	DeleteSale(ctx context.Context, id int64) error
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

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO sales (code, customer_id, warehouse_id, date, subtotal, tax_rate, tax_amount, discount, shipping, grand_total, payment_status, notes, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14) RETURNING id`,
		sale.Code, sale.CustomerID, sale.WarehouseID, sale.Date, sale.Subtotal, sale.TaxRate, sale.TaxAmount,
		sale.Discount, sale.Shipping, sale.GrandTotal, sale.PaymentStatus, sale.Notes, sale.CreatedBy, sale.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO sale_lines (sale_id, product_id, qty, unit_price, discount, tax, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		line.SaleID, line.ProductID, line.Qty, line.UnitPrice, line.Discount, line.Tax, line.Total).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	var s Sale
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, customer_id, warehouse_id, date, subtotal, tax_rate, tax_amount, discount, shipping, grand_total, payment_status, COALESCE(notes, ''), created_by, created_at
		 FROM sales WHERE id = $1 FOR UPDATE`, id).
		Scan(&s.ID, &s.Code, &s.CustomerID, &s.WarehouseID, &s.Date, &s.Subtotal, &s.TaxRate, &s.TaxAmount,
			&s.Discount, &s.Shipping, &s.GrandTotal, &s.PaymentStatus, &s.Notes, &s.CreatedBy, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, httpx.ErrNotFound
	}
	return s, err
}

func (r *txRepository) HasReturns(ctx context.Context, saleID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM returns WHERE kind = 'sales' AND document_id = $1)`, saleID).Scan(&exists)
	return exists, err
}

func (r *txRepository) UpdateHeader(ctx context.Context, sale Sale) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE sales SET customer_id = $1, warehouse_id = $2, date = $3, subtotal = $4, tax_rate = $5, tax_amount = $6, discount = $7, shipping = $8, grand_total = $9, payment_status = $10, notes = NULLIF($11, '') WHERE id = $12`,
		sale.CustomerID, sale.WarehouseID, sale.Date, sale.Subtotal, sale.TaxRate, sale.TaxAmount,
		sale.Discount, sale.Shipping, sale.GrandTotal, sale.PaymentStatus, sale.Notes, sale.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, saleID)
	return err
}

func (r *txRepository) DeleteSale(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM sale_lines WHERE sale_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Sale, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if filters.CustomerID > 0 {
		n++
		where += ` AND s.customer_id = $` + strconv.Itoa(n)
		args = append(args, filters.CustomerID)
	}
	if filters.WarehouseID > 0 {
		n++
		where += ` AND s.warehouse_id = $` + strconv.Itoa(n)
		args = append(args, filters.WarehouseID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT s.id, s.code, s.customer_id, c.name, s.warehouse_id, w.name, s.date, s.subtotal, s.tax_rate, s.tax_amount, s.discount, s.shipping, s.grand_total, s.payment_status, COALESCE(s.notes, ''), s.created_by, s.created_at
		FROM sales s
		JOIN customers c ON c.id = s.customer_id
		JOIN warehouses w ON w.id = s.warehouse_id` + where + ` ORDER BY s.id DESC`
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

	var out []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Code, &s.CustomerID, &s.CustomerName, &s.WarehouseID, &s.WarehouseName, &s.Date,
			&s.Subtotal, &s.TaxRate, &s.TaxAmount, &s.Discount, &s.Shipping, &s.GrandTotal, &s.PaymentStatus, &s.Notes, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (SaleWithLines, error) {
	var s SaleWithLines
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, s.code, s.customer_id, c.name, s.warehouse_id, w.name, s.date, s.subtotal, s.tax_rate, s.tax_amount, s.discount, s.shipping, s.grand_total, s.payment_status, COALESCE(s.notes, ''), s.created_by, s.created_at
		 FROM sales s
		 JOIN customers c ON c.id = s.customer_id
		 JOIN warehouses w ON w.id = s.warehouse_id
		 WHERE s.id = $1`, id).
		Scan(&s.ID, &s.Code, &s.CustomerID, &s.CustomerName, &s.WarehouseID, &s.WarehouseName, &s.Date,
			&s.Subtotal, &s.TaxRate, &s.TaxAmount, &s.Discount, &s.Shipping, &s.GrandTotal, &s.PaymentStatus, &s.Notes, &s.CreatedBy, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleWithLines{}, httpx.ErrNotFound
	}
	if err != nil {
		return SaleWithLines{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.sale_id, l.product_id, p.name, l.qty, l.unit_price, l.discount, l.tax, l.total
		 FROM sale_lines l
		 JOIN products p ON p.id = l.product_id
		 WHERE l.sale_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return SaleWithLines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPrice, &l.Discount, &l.Tax, &l.Total); err != nil {
			return SaleWithLines{}, err
		}
		s.Lines = append(s.Lines, l)
	}
	return s, rows.Err()
}
