package products

// CreateProductRequest carries the fields required to register a product.
// Stock here is the opening baseline; later stock changes go through the
// ledger only.
type CreateProductRequest struct {
	Code          string  `json:"code" validate:"required,max=64"`
	Name          string  `json:"name" validate:"required,max=255"`
	CategoryID    int64   `json:"category_id" validate:"required,gt=0"`
	UnitID        int64   `json:"unit_id" validate:"required,gt=0"`
	Cost          float64 `json:"cost" validate:"gte=0"`
	Price         float64 `json:"price" validate:"gte=0"`
	Stock         float64 `json:"stock" validate:"gte=0"`
	AlertQuantity float64 `json:"alert_quantity" validate:"gte=0"`
	ImagePath     string  `json:"image_path,omitempty"`
}

// UpdateProductRequest updates descriptive fields. Stock is deliberately
// absent; edits cannot re-baseline inventory.
type UpdateProductRequest struct {
	Code          string  `json:"code" validate:"required,max=64"`
	Name          string  `json:"name" validate:"required,max=255"`
	CategoryID    int64   `json:"category_id" validate:"required,gt=0"`
	UnitID        int64   `json:"unit_id" validate:"required,gt=0"`
	Cost          float64 `json:"cost" validate:"gte=0"`
	Price         float64 `json:"price" validate:"gte=0"`
	AlertQuantity float64 `json:"alert_quantity" validate:"gte=0"`
	ImagePath     string  `json:"image_path,omitempty"`
	IsActive      *bool   `json:"is_active,omitempty"`
}
