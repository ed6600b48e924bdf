package repository

import (
	"context"

	"billing-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	Update(ctx context.Context, invoice *model.Invoice) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindLast(ctx context.Context) (*model.Invoice, error)
	List(ctx context.Context, paid *bool, page, limit int) ([]model.Invoice, int64, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Invoice, error)
	CreateLine(ctx context.Context, line *model.InvoiceLine) error
	LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceLine, error)
	DeleteLinesByInvoice(ctx context.Context, invoiceID uuid.UUID) error
	DetachProductFromLines(ctx context.Context, productID uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Save(invoice).Error
}

func (r *invoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Invoice{}).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate locks the invoice row so concurrent payment
// reconciliations against the same invoice serialize at the storage
// layer.
func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	db := GetDB(ctx, r.db)
	if db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var invoice model.Invoice
	if err := db.Where("id = ?", id).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDWithDetails(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("Customer").
		Preload("Lines").
		Preload("Lines.Product").
		First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindLast returns the most recently created invoice, or
// gorm.ErrRecordNotFound when none exist. The read is not locked;
// duplicate numbers derived from a stale read fail at the unique
// index on invoice_number.
func (r *invoiceRepository) FindLast(ctx context.Context) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Order("created_at desc").First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, paid *bool, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Invoice{})
	if paid != nil {
		query = query.Where("paid = ?", *paid)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetchQuery := db.Preload("Customer")
	if paid != nil {
		fetchQuery = fetchQuery.Where("paid = ?", *paid)
	}
	if err := fetchQuery.Order("date desc").Offset(offset).Limit(limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := GetDB(ctx, r.db).Where("customer_id = ?", customerID).Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) CreateLine(ctx context.Context, line *model.InvoiceLine) error {
	return GetDB(ctx, r.db).Create(line).Error
}

func (r *invoiceRepository) LinesByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceLine, error) {
	var lines []model.InvoiceLine
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("created_at asc").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *invoiceRepository) DeleteLinesByInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Delete(&model.InvoiceLine{}).Error
}

// DetachProductFromLines nulls the product reference on lines pointing
// at a deleted product; the lines themselves survive with their
// captured unit price and total.
func (r *invoiceRepository) DetachProductFromLines(ctx context.Context, productID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.InvoiceLine{}).
		Where("product_id = ?", productID).
		Update("product_id", nil).Error
}

func (r *invoiceRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
