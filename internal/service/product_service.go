package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-backend/internal/model"
	"billing-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateProductRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       string `json:"price" binding:"required"`
	Stock       int    `json:"stock" binding:"min=0"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Price       *string `json:"price"`
	Stock       *int    `json:"stock"`
}

type ProductResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	CreatedAt   string `json:"created_at"`
}

// --- Interface ---

type ProductService interface {
	CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error)
	UpdateProduct(ctx context.Context, userID string, id string, req UpdateProductRequest) (ProductResponse, error)
	DeleteProduct(ctx context.Context, userID string, id string) error
	GetProduct(ctx context.Context, id string) (ProductResponse, error)
	ListProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error)
}

type productService struct {
	productRepo repository.ProductRepository
	invoiceRepo repository.InvoiceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewProductService(
	productRepo repository.ProductRepository,
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) ProductService {
	return &productService{
		productRepo: productRepo,
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *productService) CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (ProductResponse, error) {
	verr := &ValidationError{}
	if req.Name == "" {
		verr.add("name", "is required")
	}
	price, parseErr := decimal.NewFromString(req.Price)
	if parseErr != nil {
		verr.add("price", "must be a decimal amount")
	} else if price.IsNegative() {
		verr.add("price", "must not be negative")
	}
	if req.Stock < 0 {
		verr.add("stock", "must not be negative")
	}
	if err := verr.orNil(); err != nil {
		return ProductResponse{}, err
	}

	product := model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.productRepo.Create(txCtx, &product); createErr != nil {
			return fmt.Errorf("failed to create product: %w", createErr)
		}
		return s.audit(txCtx, userID, model.ActionCreateProduct, &product, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(product), nil
}

func (s *productService) UpdateProduct(ctx context.Context, userID string, id string, req UpdateProductRequest) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, errInvalidID("product_id")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return ProductResponse{}, fmt.Errorf("failed to load product: %w", err)
	}

	verr := &ValidationError{}
	if req.Name != nil {
		if *req.Name == "" {
			verr.add("name", "must not be empty")
		} else {
			product.Name = *req.Name
		}
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		price, parseErr := decimal.NewFromString(*req.Price)
		if parseErr != nil || price.IsNegative() {
			verr.add("price", "must be a non-negative decimal amount")
		} else {
			product.Price = price
		}
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			verr.add("stock", "must not be negative")
		} else {
			product.Stock = *req.Stock
		}
	}
	if err := verr.orNil(); err != nil {
		return ProductResponse{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.productRepo.Update(txCtx, product); updateErr != nil {
			return fmt.Errorf("failed to update product: %w", updateErr)
		}
		return s.audit(txCtx, userID, model.ActionUpdateProduct, product, req)
	})
	if err != nil {
		return ProductResponse{}, err
	}

	return toProductResponse(*product), nil
}

// DeleteProduct removes the product; existing invoice lines keep their
// captured price and total but lose the product reference.
func (s *productService) DeleteProduct(ctx context.Context, userID string, id string) error {
	productID, err := uuid.Parse(id)
	if err != nil {
		return errInvalidID("product_id")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to load product: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if detachErr := s.invoiceRepo.DetachProductFromLines(txCtx, productID); detachErr != nil {
			return fmt.Errorf("failed to detach invoice lines: %w", detachErr)
		}
		if delErr := s.productRepo.Delete(txCtx, productID); delErr != nil {
			return fmt.Errorf("failed to delete product: %w", delErr)
		}
		return s.audit(txCtx, userID, model.ActionDeleteProduct, product, map[string]interface{}{"deleted": true})
	})
}

func (s *productService) GetProduct(ctx context.Context, id string) (ProductResponse, error) {
	productID, err := uuid.Parse(id)
	if err != nil {
		return ProductResponse{}, errInvalidID("product_id")
	}

	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ProductResponse{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return ProductResponse{}, fmt.Errorf("failed to load product: %w", err)
	}

	return toProductResponse(*product), nil
}

func (s *productService) ListProducts(ctx context.Context, page, limit int, search string) ([]ProductResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	products, total, err := s.productRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch products: %w", err)
	}

	result := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		result = append(result, toProductResponse(p))
	}
	return result, total, nil
}

func (s *productService) audit(txCtx context.Context, userID string, action string, product *model.Product, payload interface{}) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   product.ID.String(),
		EntityName: product.Name,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(txCtx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}
