package quotations

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/platform/db"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filters ListFilters) ([]Quotation, int, error)
	Get(ctx context.Context, id int64) (QuotationWithLines, error)
}

type TxRepository interface {
	InsertQuotation(ctx context.Context, q Quotation) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Quotation, error)
	Lines(ctx context.Context, quotationID int64) ([]Line, error)
	UpdateHeader(ctx context.Context, q Quotation) error
	SetConverted(ctx context.Context, id, saleID int64) error
	SetStatus(ctx context.Context, id int64, status Status) error
	DeleteLines(ctx context.Context, quotationID int64) error
	DeleteQuotation(ctx context.Context, id int64) error
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

func (r *txRepository) InsertQuotation(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO quotations (code, customer_id, warehouse_id, date, status, subtotal, tax_rate, tax_amount, discount, shipping, grand_total, notes, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $14) RETURNING id`,
		q.Code, q.CustomerID, q.WarehouseID, q.Date, q.Status, q.Subtotal, q.TaxRate, q.TaxAmount,
		q.Discount, q.Shipping, q.GrandTotal, q.Notes, q.CreatedBy, q.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO quotation_lines (quotation_id, product_id, qty, unit_price, discount, tax, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		line.QuotationID, line.ProductID, line.Qty, line.UnitPrice, line.Discount, line.Tax, line.Total).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	var q Quotation
	var saleID *int64
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, customer_id, warehouse_id, date, status, subtotal, tax_rate, tax_amount, discount, shipping, grand_total, sale_id, COALESCE(notes, ''), created_by, created_at, updated_at
		 FROM quotations WHERE id = $1 FOR UPDATE`, id).
		Scan(&q.ID, &q.Code, &q.CustomerID, &q.WarehouseID, &q.Date, &q.Status, &q.Subtotal, &q.TaxRate, &q.TaxAmount,
			&q.Discount, &q.Shipping, &q.GrandTotal, &saleID, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, httpx.ErrNotFound
	}
	if saleID != nil {
		q.SaleID = *saleID
	}
	return q, err
}

func (r *txRepository) Lines(ctx context.Context, quotationID int64) ([]Line, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, quotation_id, product_id, qty, unit_price, discount, tax, total
		 FROM quotation_lines WHERE quotation_id = $1 ORDER BY id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ProductID, &l.Qty, &l.UnitPrice, &l.Discount, &l.Tax, &l.Total); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepository) UpdateHeader(ctx context.Context, q Quotation) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE quotations SET customer_id = $1, warehouse_id = $2, date = $3, subtotal = $4, tax_rate = $5, tax_amount = $6, discount = $7, shipping = $8, grand_total = $9, notes = NULLIF($10, ''), updated_at = $11 WHERE id = $12`,
		q.CustomerID, q.WarehouseID, q.Date, q.Subtotal, q.TaxRate, q.TaxAmount, q.Discount, q.Shipping, q.GrandTotal, q.Notes, time.Now(), q.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) SetConverted(ctx context.Context, id, saleID int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE quotations SET status = $1, sale_id = $2, updated_at = $3 WHERE id = $4`,
		StatusConverted, saleID, time.Now(), id)
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
		`UPDATE quotations SET status = $1, sale_id = NULL, updated_at = $2 WHERE id = $3`, status, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, quotationID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, quotationID)
	return err
}

func (r *txRepository) DeleteQuotation(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Quotation, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if filters.CustomerID > 0 {
		n++
		where += ` AND q.customer_id = $` + strconv.Itoa(n)
		args = append(args, filters.CustomerID)
	}
	if filters.Status != "" {
		n++
		where += ` AND q.status = $` + strconv.Itoa(n)
		args = append(args, filters.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotations q`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT q.id, q.code, q.customer_id, c.name, q.warehouse_id, w.name, q.date, q.status, q.subtotal, q.tax_rate, q.tax_amount, q.discount, q.shipping, q.grand_total, COALESCE(q.sale_id, 0), COALESCE(q.notes, ''), q.created_by, q.created_at, q.updated_at
		FROM quotations q
		JOIN customers c ON c.id = q.customer_id
		JOIN warehouses w ON w.id = q.warehouse_id` + where + ` ORDER BY q.id DESC`
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

	var out []Quotation
	for rows.Next() {
		var q Quotation
		if err := rows.Scan(&q.ID, &q.Code, &q.CustomerID, &q.CustomerName, &q.WarehouseID, &q.WarehouseName, &q.Date, &q.Status,
			&q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.Discount, &q.Shipping, &q.GrandTotal, &q.SaleID, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (QuotationWithLines, error) {
	var q QuotationWithLines
	err := r.pool.QueryRow(ctx,
		`SELECT q.id, q.code, q.customer_id, c.name, q.warehouse_id, w.name, q.date, q.status, q.subtotal, q.tax_rate, q.tax_amount, q.discount, q.shipping, q.grand_total, COALESCE(q.sale_id, 0), COALESCE(q.notes, ''), q.created_by, q.created_at, q.updated_at
		 FROM quotations q
		 JOIN customers c ON c.id = q.customer_id
		 JOIN warehouses w ON w.id = q.warehouse_id
		 WHERE q.id = $1`, id).
		Scan(&q.ID, &q.Code, &q.CustomerID, &q.CustomerName, &q.WarehouseID, &q.WarehouseName, &q.Date, &q.Status,
			&q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.Discount, &q.Shipping, &q.GrandTotal, &q.SaleID, &q.Notes, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return QuotationWithLines{}, httpx.ErrNotFound
	}
	if err != nil {
		return QuotationWithLines{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.quotation_id, l.product_id, p.name, l.qty, l.unit_price, l.discount, l.tax, l.total
		 FROM quotation_lines l
		 JOIN products p ON p.id = l.product_id
		 WHERE l.quotation_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return QuotationWithLines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.QuotationID, &l.ProductID, &l.ProductName, &l.Qty, &l.UnitPrice, &l.Discount, &l.Tax, &l.Total); err != nil {
			return QuotationWithLines{}, err
		}
		q.Lines = append(q.Lines, l)
	}
	return q, rows.Err()
}
