package products

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stockroom-erp/stockroom/internal/masterdata/shared"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]ProductWithDetails, int, error)
	Get(ctx context.Context, id int64) (ProductWithDetails, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectColumns = `p.id, p.code, p.name, p.category_id, p.unit_id, p.cost, p.price, p.stock, p.alert_quantity, COALESCE(p.image_path, ''), p.is_active, p.created_at, p.updated_at, COALESCE(c.name, ''), COALESCE(u.name, '')`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]ProductWithDetails, int, error) {
	filters = filters.Normalize()

	where := ` WHERE 1=1`
	args := []any{}
	n := 0

	if filters.Search != "" {
		n++
		where += ` AND (p.name ILIKE $` + strconv.Itoa(n) + ` OR p.code ILIKE $` + strconv.Itoa(n) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		n++
		where += ` AND p.category_id = $` + strconv.Itoa(n)
		args = append(args, *filters.CategoryID)
	}
	if filters.IsActive != nil {
		n++
		where += ` AND p.is_active = $` + strconv.Itoa(n)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + selectColumns + `
		 FROM products p
		 LEFT JOIN categories c ON c.id = p.category_id
		 LEFT JOIN units u ON u.id = p.unit_id` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)

	n++
	query += ` LIMIT $` + strconv.Itoa(n)
	args = append(args, filters.Limit)
	n++
	query += ` OFFSET $` + strconv.Itoa(n)
	args = append(args, filters.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ProductWithDetails
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (ProductWithDetails, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+`
		 FROM products p
		 LEFT JOIN categories c ON c.id = p.category_id
		 LEFT JOIN units u ON u.id = p.unit_id
		 WHERE p.id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductWithDetails{}, httpx.ErrNotFound
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx,
		`INSERT INTO products (code, name, category_id, unit_id, cost, price, stock, initial_stock, alert_quantity, image_path, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, NULLIF($9, ''), TRUE, $10, $10)
		 RETURNING id`,
		product.Code, product.Name, product.CategoryID, product.UnitID, product.Cost, product.Price, product.Stock, product.AlertQuantity, product.ImagePath, now).Scan(&product.ID)
	if err != nil {
		return Product{}, mapPgError(err)
	}
	product.IsActive = true
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE products SET code = $1, name = $2, category_id = $3, unit_id = $4, cost = $5, price = $6, alert_quantity = $7, image_path = NULLIF($8, ''), is_active = $9, updated_at = $10 WHERE id = $11`,
		product.Code, product.Name, product.CategoryID, product.UnitID, product.Cost, product.Price, product.AlertQuantity, product.ImagePath, product.IsActive, time.Now(), id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (ProductWithDetails, error) {
	var p ProductWithDetails
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.CategoryID, &p.UnitID, &p.Cost, &p.Price, &p.Stock, &p.AlertQuantity, &p.ImagePath, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &p.CategoryName, &p.UnitName)
	return p, err
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return httpx.ErrDuplicate
		case "23503":
			// Referenced by documents or referencing a missing category/unit.
			return httpx.ErrValidation
		}
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "p.code " + dir
	case "price":
		return "p.price " + dir
	case "stock":
		return "p.stock " + dir
	case "created_at":
		return "p.created_at " + dir
	default:
		return "p.name " + dir
	}
}
