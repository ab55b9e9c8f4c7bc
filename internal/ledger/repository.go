package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository wraps an open transaction so document repositories can run
// ledger writes inside their own atomic unit.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetProductStockForUpdate(ctx context.Context, productID int64) (float64, bool, error) {
	var stock float64
	err := r.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

func (r *txRepository) UpdateProductStock(ctx context.Context, productID int64, stock float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock = $1, updated_at = NOW() WHERE id = $2`, stock, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("ledger: product row vanished during update")
	}
	return nil
}

func (r *txRepository) HasActiveEntries(ctx context.Context, doc DocumentRef) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_entries WHERE document_type = $1 AND document_id = $2 AND NOT reversed)`,
		doc.Type, doc.ID).Scan(&exists)
	return exists, err
}

func (r *txRepository) ActiveEntries(ctx context.Context, doc DocumentRef) ([]Entry, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT id, document_type, document_id, document_code, product_id, warehouse_id, qty, balance_after, reversed, posted_at, actor_id
		 FROM stock_entries
		 WHERE document_type = $1 AND document_id = $2 AND NOT reversed
		 ORDER BY id`,
		doc.Type, doc.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.DocumentType, &e.DocumentID, &e.DocumentCode, &e.ProductID, &e.WarehouseID, &e.Qty, &e.BalanceAfter, &e.Reversed, &e.PostedAt, &e.ActorID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO stock_entries (document_type, document_id, document_code, product_id, warehouse_id, qty, balance_after, reversed, posted_at, actor_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9)
		 RETURNING id`,
		entry.DocumentType, entry.DocumentID, entry.DocumentCode, entry.ProductID, entry.WarehouseID, entry.Qty, entry.BalanceAfter, entry.PostedAt, entry.ActorID).Scan(&id)
	return id, err
}

func (r *txRepository) MarkReversed(ctx context.Context, doc DocumentRef) error {
	_, err := r.tx.Exec(ctx,
		`UPDATE stock_entries SET reversed = TRUE, reversed_at = NOW() WHERE document_type = $1 AND document_id = $2 AND NOT reversed`,
		doc.Type, doc.ID)
	return err
}

// StockCard lists ledger entries joined with product and warehouse names.
func (r *Repository) StockCard(ctx context.Context, filter StockCardFilter) ([]StockCardRow, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0

	if filter.ProductID > 0 {
		n++
		where += ` AND e.product_id = $` + strconv.Itoa(n)
		args = append(args, filter.ProductID)
	}
	if filter.WarehouseID > 0 {
		n++
		where += ` AND e.warehouse_id = $` + strconv.Itoa(n)
		args = append(args, filter.WarehouseID)
	}
	if !filter.From.IsZero() {
		n++
		where += ` AND e.posted_at >= $` + strconv.Itoa(n)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		n++
		where += ` AND e.posted_at <= $` + strconv.Itoa(n)
		args = append(args, filter.To)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_entries e`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT e.id, e.document_type, e.document_code, e.product_id, p.name, e.warehouse_id, COALESCE(w.name, ''), e.qty, e.balance_after, e.reversed, e.posted_at
		 FROM stock_entries e
		 JOIN products p ON p.id = e.product_id
		 LEFT JOIN warehouses w ON w.id = e.warehouse_id` + where + ` ORDER BY e.posted_at DESC, e.id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := (filter.Page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	n++
	query += ` LIMIT $` + strconv.Itoa(n)
	args = append(args, limit)
	n++
	query += ` OFFSET $` + strconv.Itoa(n)
	args = append(args, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var card []StockCardRow
	for rows.Next() {
		var row StockCardRow
		if err := rows.Scan(&row.EntryID, &row.DocumentType, &row.DocumentCode, &row.ProductID, &row.ProductName, &row.WarehouseID, &row.WarehouseName, &row.Qty, &row.BalanceAfter, &row.Reversed, &row.PostedAt); err != nil {
			return nil, 0, err
		}
		card = append(card, row)
	}
	return card, total, rows.Err()
}

// StockLevels lists products with their alert thresholds.
func (r *Repository) StockLevels(ctx context.Context, belowAlertOnly bool) ([]StockLevel, error) {
	query := `SELECT id, code, name, stock, alert_quantity FROM products WHERE is_active`
	if belowAlertOnly {
		query += ` AND stock <= alert_quantity`
	}
	query += ` ORDER BY code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []StockLevel
	for rows.Next() {
		var lv StockLevel
		if err := rows.Scan(&lv.ProductID, &lv.Code, &lv.Name, &lv.Stock, &lv.AlertQuantity); err != nil {
			return nil, err
		}
		levels = append(levels, lv)
	}
	return levels, rows.Err()
}
