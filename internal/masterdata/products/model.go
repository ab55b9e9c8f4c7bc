package products

import "time"

// Product represents a sellable item. The stock column is a denormalized
// running total owned by the ledger; masterdata writes never touch it after
// creation.
type Product struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	CategoryID    int64     `json:"category_id"`
	UnitID        int64     `json:"unit_id"`
	Cost          float64   `json:"cost"`
	Price         float64   `json:"price"`
	Stock         float64   `json:"stock"`
	AlertQuantity float64   `json:"alert_quantity"`
	ImagePath     string    `json:"image_path,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductWithDetails joins category and unit display names for listings.
type ProductWithDetails struct {
	Product
	CategoryName string `json:"category_name"`
	UnitName     string `json:"unit_name"`
}
