package repository

import (
	"context"

	"billing-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Payment, error)
	DeleteByInvoice(ctx context.Context, invoiceID uuid.UUID) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("payment_date asc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *paymentRepository) DeleteByInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("invoice_id = ?", invoiceID).Delete(&model.Payment{}).Error
}
