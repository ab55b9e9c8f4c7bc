package transfers

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
	List(ctx context.Context, filters ListFilters) ([]Transfer, int, error)
	Get(ctx context.Context, id int64) (TransferWithLines, error)
}

type TxRepository interface {
	InsertTransfer(ctx context.Context, tr Transfer) (int64, error)
	InsertLine(ctx context.Context, line Line) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Transfer, error)
	DeleteTransfer(ctx context.Context, id int64) error
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

func (r *txRepository) InsertTransfer(ctx context.Context, tr Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO transfers (code, source_warehouse_id, destination_warehouse_id, date, notes, created_by, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7) RETURNING id`,
		tr.Code, tr.SourceID, tr.DestinationID, tr.Date, tr.Notes, tr.CreatedBy, tr.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO transfer_lines (transfer_id, product_id, qty) VALUES ($1, $2, $3) RETURNING id`,
		line.TransferID, line.ProductID, line.Qty).Scan(&id)
	return id, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Transfer, error) {
	var tr Transfer
	err := r.tx.QueryRow(ctx,
		`SELECT id, code, source_warehouse_id, destination_warehouse_id, date, COALESCE(notes, ''), created_by, created_at
		 FROM transfers WHERE id = $1 FOR UPDATE`, id).
		Scan(&tr.ID, &tr.Code, &tr.SourceID, &tr.DestinationID, &tr.Date, &tr.Notes, &tr.CreatedBy, &tr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transfer{}, httpx.ErrNotFound
	}
	return tr, err
}

func (r *txRepository) DeleteTransfer(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM transfer_lines WHERE transfer_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM transfers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Transfer, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	n := 0
	if filters.WarehouseID > 0 {
		n++
		where += ` AND (t.source_warehouse_id = $` + strconv.Itoa(n) + ` OR t.destination_warehouse_id = $` + strconv.Itoa(n) + `)`
		args = append(args, filters.WarehouseID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transfers t`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT t.id, t.code, t.source_warehouse_id, src.name, t.destination_warehouse_id, dst.name, t.date, COALESCE(t.notes, ''), t.created_by, t.created_at
		FROM transfers t
		JOIN warehouses src ON src.id = t.source_warehouse_id
		JOIN warehouses dst ON dst.id = t.destination_warehouse_id` + where + ` ORDER BY t.id DESC`
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

	var out []Transfer
	for rows.Next() {
		var tr Transfer
		if err := rows.Scan(&tr.ID, &tr.Code, &tr.SourceID, &tr.SourceName, &tr.DestinationID, &tr.DestinationName, &tr.Date, &tr.Notes, &tr.CreatedBy, &tr.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, tr)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (TransferWithLines, error) {
	var tr TransferWithLines
	err := r.pool.QueryRow(ctx,
		`SELECT t.id, t.code, t.source_warehouse_id, src.name, t.destination_warehouse_id, dst.name, t.date, COALESCE(t.notes, ''), t.created_by, t.created_at
		 FROM transfers t
		 JOIN warehouses src ON src.id = t.source_warehouse_id
		 JOIN warehouses dst ON dst.id = t.destination_warehouse_id
		 WHERE t.id = $1`, id).
		Scan(&tr.ID, &tr.Code, &tr.SourceID, &tr.SourceName, &tr.DestinationID, &tr.DestinationName, &tr.Date, &tr.Notes, &tr.CreatedBy, &tr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferWithLines{}, httpx.ErrNotFound
	}
	if err != nil {
		return TransferWithLines{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT l.id, l.transfer_id, l.product_id, p.name, l.qty
		 FROM transfer_lines l
		 JOIN products p ON p.id = l.product_id
		 WHERE l.transfer_id = $1 ORDER BY l.id`, id)
	if err != nil {
		return TransferWithLines{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.TransferID, &l.ProductID, &l.ProductName, &l.Qty); err != nil {
			return TransferWithLines{}, err
		}
		tr.Lines = append(tr.Lines, l)
	}
	return tr, rows.Err()
}
