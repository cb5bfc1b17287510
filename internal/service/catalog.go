package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maryannartillero/POS-namon/internal/domain"
	"github.com/maryannartillero/POS-namon/internal/inventory"
	"github.com/maryannartillero/POS-namon/internal/store"
	"github.com/maryannartillero/POS-namon/internal/validation"
	"github.com/maryannartillero/POS-namon/internal/xid"
)

const initialStockReason = "Initial stock"

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, s.persistence(ctx, "list products", err)
	}
	return products, nil
}

func (s *Service) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	return s.ListProducts(ctx, domain.ProductFilter{LowStock: true})
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
		}
		return domain.Product{}, s.persistence(ctx, "get product", err)
	}
	return *p, nil
}

// CreateProduct inserts the product with zero stock and, when an initial
// quantity is given, records it as an "in" movement in the same unit.
func (s *Service) CreateProduct(ctx context.Context, actor domain.Actor, req domain.ProductCreateRequest) (domain.Product, error) {
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Name = strings.TrimSpace(req.Name)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if err := validation.Struct(req); err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product := domain.Product{
		ID:          xid.New("prd"),
		SKU:         req.SKU,
		Barcode:     req.Barcode,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  req.CategoryID,
		PriceCents:  req.PriceCents,
		CostCents:   req.CostCents,
		MinStock:    req.MinStock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.WithinTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertProduct(ctx, product); err != nil {
			return err
		}
		if req.InitialStock == 0 {
			return nil
		}
		result, err := s.ledger.AdjustInTx(ctx, tx, inventory.Adjustment{
			ProductID:       product.ID,
			Kind:            domain.MovementIn,
			Quantity:        req.InitialStock,
			Reason:          initialStockReason,
			ReferenceNumber: "INIT-" + product.SKU,
			Actor:           actor,
		})
		if err != nil {
			return err
		}
		product = result.Product
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Product{}, domain.NewValidationError("sku", "sku or barcode already exists")
		}
		return domain.Product{}, s.persistence(ctx, "create product", err)
	}

	if req.InitialStock > 0 {
		s.recorder.StockAdjusted(string(domain.MovementIn))
	}
	return product, nil
}

// UpdateProduct edits catalog metadata. Stock is only changed through
// AdjustStock.
func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := validation.Struct(req); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := existing
	if req.SKU != nil {
		updated.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
		if updated.SKU == "" {
			return domain.Product{}, domain.NewValidationError("sku", "is required")
		}
	}
	if req.Barcode != nil {
		updated.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return domain.Product{}, domain.NewValidationError("name", "is required")
		}
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
	}
	if req.CostCents != nil {
		updated.CostCents = *req.CostCents
	}
	if req.MinStock != nil {
		updated.MinStock = *req.MinStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	return s.saveProduct(ctx, updated)
}

// DeactivateProduct soft-deletes a product so historical rows keep their reference.
func (s *Service) DeactivateProduct(ctx context.Context, id string) (domain.Product, error) {
	existing, err := s.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	existing.Active = false
	return s.saveProduct(ctx, existing)
}

func (s *Service) saveProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	saved, err := s.repo.UpdateProductDetails(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, p.ID)
		case errors.Is(err, store.ErrConflict):
			return domain.Product{}, domain.NewValidationError("sku", "sku or barcode already exists")
		}
		return domain.Product{}, s.persistence(ctx, "update product", err)
	}
	return *saved, nil
}

// AdjustStock records a manual stock movement for one product.
func (s *Service) AdjustStock(ctx context.Context, actor domain.Actor, productID string, req domain.StockAdjustmentRequest) (domain.StockAdjustmentResponse, error) {
	if req.Quantity < 1 {
		return domain.StockAdjustmentResponse{}, domain.ErrInvalidQuantity
	}
	if err := validation.Struct(req); err != nil {
		return domain.StockAdjustmentResponse{}, err
	}

	result, err := s.ledger.Adjust(ctx, inventory.Adjustment{
		ProductID:       strings.TrimSpace(productID),
		Kind:            req.Kind,
		Quantity:        req.Quantity,
		Reason:          req.Reason,
		ReferenceNumber: req.ReferenceNumber,
		Actor:           actor,
	})
	if err != nil {
		return domain.StockAdjustmentResponse{}, s.persistence(ctx, "adjust stock", err)
	}

	s.recorder.StockAdjusted(string(req.Kind))
	s.log.InfoContext(ctx, "stock adjusted",
		"product_id", result.Product.ID,
		"type", req.Kind,
		"previous_stock", result.PreviousStock(),
		"new_stock", result.NewStock(),
		"out_policy", s.ledger.Policy(),
		"user_id", actor.ID,
	)
	return domain.StockAdjustmentResponse{Product: result.Product, Movement: result.Movement}, nil
}

func (s *Service) ListMovements(ctx context.Context, productID string, limit int) ([]domain.InventoryMovement, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	movements, err := s.repo.ListMovements(ctx, strings.TrimSpace(productID), limit)
	if err != nil {
		return nil, s.persistence(ctx, "list movements", err)
	}
	return movements, nil
}

func (s *Service) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	discounts, err := s.repo.ListDiscounts(ctx)
	if err != nil {
		return nil, s.persistence(ctx, "list discounts", err)
	}
	return discounts, nil
}

// ActiveDiscounts lists discounts that would apply today, ignoring minimums.
func (s *Service) ActiveDiscounts(ctx context.Context) ([]domain.Discount, error) {
	all, err := s.ListDiscounts(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]domain.Discount, 0, len(all))
	for _, d := range all {
		if s.discounts.IsValid(d, now) {
			active = append(active, d)
		}
	}
	return active, nil
}

func (s *Service) GetDiscount(ctx context.Context, id string) (domain.Discount, error) {
	d, err := s.repo.GetDiscount(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Discount{}, fmt.Errorf("%w: %s", domain.ErrDiscountNotFound, id)
		}
		return domain.Discount{}, s.persistence(ctx, "get discount", err)
	}
	return *d, nil
}

func (s *Service) CreateDiscount(ctx context.Context, req domain.DiscountRequest) (domain.Discount, error) {
	d, err := discountFromRequest(req)
	if err != nil {
		return domain.Discount{}, err
	}
	now := s.now()
	d.ID = xid.New("dsc")
	d.CreatedAt = now
	d.UpdatedAt = now

	created, err := s.repo.CreateDiscount(ctx, d)
	if err != nil {
		return domain.Discount{}, s.persistence(ctx, "create discount", err)
	}
	return *created, nil
}

func (s *Service) UpdateDiscount(ctx context.Context, id string, req domain.DiscountRequest) (domain.Discount, error) {
	d, err := discountFromRequest(req)
	if err != nil {
		return domain.Discount{}, err
	}
	d.ID = strings.TrimSpace(id)
	d.UpdatedAt = s.now()

	updated, err := s.repo.UpdateDiscount(ctx, d)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Discount{}, fmt.Errorf("%w: %s", domain.ErrDiscountNotFound, id)
		}
		return domain.Discount{}, s.persistence(ctx, "update discount", err)
	}
	return *updated, nil
}

func discountFromRequest(req domain.DiscountRequest) (domain.Discount, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(req); err != nil {
		return domain.Discount{}, err
	}

	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return domain.Discount{}, domain.NewValidationError("start_date", "must be a date formatted as YYYY-MM-DD")
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		return domain.Discount{}, domain.NewValidationError("end_date", "must be a date formatted as YYYY-MM-DD")
	}
	if end.Before(start) {
		return domain.Discount{}, domain.NewValidationError("end_date", "must be on or after start_date")
	}

	d := domain.Discount{
		Name:         req.Name,
		Description:  strings.TrimSpace(req.Description),
		Type:         req.Type,
		MinimumCents: req.MinimumCents,
		StartDate:    start,
		EndDate:      end,
		Active:       true,
	}
	switch req.Type {
	case domain.DiscountPercentage:
		if req.Percent <= 0 {
			return domain.Discount{}, domain.NewValidationError("percent", "must be greater than 0")
		}
		d.Percent = req.Percent
	case domain.DiscountFixed:
		if req.AmountCents <= 0 {
			return domain.Discount{}, domain.NewValidationError("amount_cents", "must be greater than 0")
		}
		d.AmountCents = req.AmountCents
	}
	if req.Active != nil {
		d.Active = *req.Active
	}
	return d, nil
}

func (s *Service) ListFarewellMessages(ctx context.Context, activeOnly bool) ([]domain.FarewellMessage, error) {
	messages, err := s.repo.ListFarewellMessages(ctx, activeOnly)
	if err != nil {
		return nil, s.persistence(ctx, "list farewell messages", err)
	}
	return messages, nil
}

func (s *Service) CreateFarewellMessage(ctx context.Context, req domain.FarewellMessageRequest) (domain.FarewellMessage, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := validation.Struct(req); err != nil {
		return domain.FarewellMessage{}, err
	}

	msg := domain.FarewellMessage{
		ID:           xid.New("fwm"),
		Message:      req.Message,
		Active:       true,
		DisplayOrder: req.DisplayOrder,
		CreatedAt:    s.now(),
	}
	if req.Active != nil {
		msg.Active = *req.Active
	}

	created, err := s.repo.CreateFarewellMessage(ctx, msg)
	if err != nil {
		return domain.FarewellMessage{}, s.persistence(ctx, "create farewell message", err)
	}
	return *created, nil
}

// UpdateFarewellMessage replaces the text and display order. Active is kept
// unless the request sets it.
func (s *Service) UpdateFarewellMessage(ctx context.Context, id string, req domain.FarewellMessageRequest) (domain.FarewellMessage, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := validation.Struct(req); err != nil {
		return domain.FarewellMessage{}, err
	}

	current, err := s.getFarewellMessage(ctx, id)
	if err != nil {
		return domain.FarewellMessage{}, err
	}
	current.Message = req.Message
	current.DisplayOrder = req.DisplayOrder
	if req.Active != nil {
		current.Active = *req.Active
	}
	return s.saveFarewellMessage(ctx, current)
}

// DeactivateFarewellMessage hides a message from sales. The row is kept.
func (s *Service) DeactivateFarewellMessage(ctx context.Context, id string) (domain.FarewellMessage, error) {
	current, err := s.getFarewellMessage(ctx, id)
	if err != nil {
		return domain.FarewellMessage{}, err
	}
	current.Active = false
	return s.saveFarewellMessage(ctx, current)
}

func (s *Service) getFarewellMessage(ctx context.Context, id string) (domain.FarewellMessage, error) {
	id = strings.TrimSpace(id)
	msg, err := s.repo.GetFarewellMessage(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FarewellMessage{}, fmt.Errorf("%w: %s", domain.ErrFarewellNotFound, id)
		}
		return domain.FarewellMessage{}, s.persistence(ctx, "get farewell message", err)
	}
	return *msg, nil
}

func (s *Service) saveFarewellMessage(ctx context.Context, msg domain.FarewellMessage) (domain.FarewellMessage, error) {
	saved, err := s.repo.UpdateFarewellMessage(ctx, msg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.FarewellMessage{}, fmt.Errorf("%w: %s", domain.ErrFarewellNotFound, msg.ID)
		}
		return domain.FarewellMessage{}, s.persistence(ctx, "update farewell message", err)
	}
	return *saved, nil
}

// RandomFarewellMessage returns nil when no message is active.
func (s *Service) RandomFarewellMessage(ctx context.Context) *string {
	return s.randomFarewell(ctx)
}
