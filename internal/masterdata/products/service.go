package products

import (
	"context"
	"fmt"

	"github.com/stockroom-erp/stockroom/internal/masterdata/shared"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	internalShared "github.com/stockroom-erp/stockroom/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]ProductWithDetails, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (ProductWithDetails, error) {
	if id <= 0 {
		return ProductWithDetails{}, fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	if err := internalShared.ValidateStruct(req); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, Product{
		Code:          req.Code,
		Name:          req.Name,
		CategoryID:    req.CategoryID,
		UnitID:        req.UnitID,
		Cost:          req.Cost,
		Price:         req.Price,
		Stock:         req.Stock,
		AlertQuantity: req.AlertQuantity,
		ImagePath:     req.ImagePath,
	})
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	if err := internalShared.ValidateStruct(req); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	active := current.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return s.repo.Update(ctx, id, Product{
		Code:          req.Code,
		Name:          req.Name,
		CategoryID:    req.CategoryID,
		UnitID:        req.UnitID,
		Cost:          req.Cost,
		Price:         req.Price,
		AlertQuantity: req.AlertQuantity,
		ImagePath:     req.ImagePath,
		IsActive:      active,
	})
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", httpx.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
