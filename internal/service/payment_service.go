package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"billing-backend/internal/model"
	"billing-backend/internal/repository"
	ws "billing-backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type RecordPaymentRequest struct {
	AmountPaid    string `json:"amount_paid" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=cash card upi bank"`
	TransactionID string `json:"transaction_id"`
}

type PaymentResponse struct {
	ID            string `json:"id"`
	InvoiceID     string `json:"invoice_id"`
	AmountPaid    string `json:"amount_paid"`
	PaymentDate   string `json:"payment_date"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// --- Interface ---

type PaymentService interface {
	RecordPayment(ctx context.Context, userID string, invoiceID string, req RecordPaymentRequest) (PaymentResponse, error)
	ListPayments(ctx context.Context, invoiceID string) ([]PaymentResponse, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	invoiceRepo repository.InvoiceRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *ws.Hub
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	invoiceRepo repository.InvoiceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

var validPaymentMethods = map[string]bool{
	model.PaymentMethodCash: true,
	model.PaymentMethodCard: true,
	model.PaymentMethodUPI:  true,
	model.PaymentMethodBank: true,
}

// RecordPayment persists the payment and reconciles the invoice's paid
// flag inside one transaction. The flag is recomputed from the full
// payment history each time, never incrementally, so out-of-band edits
// are tolerated. The invoice row is locked for the duration, which
// serializes concurrent payments against the same invoice.
func (s *paymentService) RecordPayment(ctx context.Context, userID string, invoiceID string, req RecordPaymentRequest) (PaymentResponse, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return PaymentResponse{}, errInvalidID("invoice_id")
	}

	verr := &ValidationError{}
	amount, parseErr := decimal.NewFromString(req.AmountPaid)
	if parseErr != nil {
		verr.add("amount_paid", "must be a decimal amount")
	} else if amount.LessThanOrEqual(decimal.Zero) {
		verr.add("amount_paid", "must be greater than zero")
	}
	if !validPaymentMethods[req.PaymentMethod] {
		verr.add("payment_method", "must be one of: cash, card, upi, bank")
	}
	if err := verr.orNil(); err != nil {
		return PaymentResponse{}, err
	}

	var payment model.Payment
	var paid bool

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, findErr := s.invoiceRepo.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
			}
			return fmt.Errorf("failed to load invoice: %w", findErr)
		}

		payment = model.Payment{
			InvoiceID:     invoice.ID,
			AmountPaid:    amount,
			PaymentDate:   time.Now(),
			PaymentMethod: req.PaymentMethod,
			TransactionID: req.TransactionID,
		}
		if createErr := s.paymentRepo.Create(txCtx, &payment); createErr != nil {
			return fmt.Errorf("failed to record payment: %w", createErr)
		}

		payments, listErr := s.paymentRepo.ListByInvoice(txCtx, invoice.ID)
		if listErr != nil {
			return fmt.Errorf("failed to load payments: %w", listErr)
		}

		totalPaid := decimal.Zero
		for _, p := range payments {
			totalPaid = totalPaid.Add(p.AmountPaid)
		}

		// sum >= total marks the invoice paid; overpayment is allowed
		invoice.Paid = totalPaid.GreaterThanOrEqual(invoice.TotalAmount)
		paid = invoice.Paid
		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}

		return s.auditRecord(txCtx, userID, invoice, &payment)
	})
	if err != nil {
		return PaymentResponse{}, err
	}

	s.notify("payment.recorded", map[string]interface{}{
		"invoice_id":  invoiceID,
		"amount_paid": amount.StringFixed(2),
		"paid":        paid,
	})

	return toPaymentResponse(payment), nil
}

func (s *paymentService) ListPayments(ctx context.Context, invoiceID string) ([]PaymentResponse, error) {
	id, err := uuid.Parse(invoiceID)
	if err != nil {
		return nil, errInvalidID("invoice_id")
	}

	if _, err := s.invoiceRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice %s: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	payments, err := s.paymentRepo.ListByInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	result := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, toPaymentResponse(p))
	}
	return result, nil
}

func (s *paymentService) auditRecord(txCtx context.Context, userID string, invoice *model.Invoice, payment *model.Payment) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	details, _ := json.Marshal(map[string]interface{}{
		"invoice_number": invoice.InvoiceNumber,
		"amount_paid":    payment.AmountPaid.StringFixed(2),
		"method":         payment.PaymentMethod,
		"paid":           invoice.Paid,
	})
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     model.ActionRecordPayment,
		EntityID:   payment.ID.String(),
		EntityName: invoice.InvoiceNumber,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(txCtx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *paymentService) notify(event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}
	s.hub.Broadcast <- msg
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		InvoiceID:     p.InvoiceID.String(),
		AmountPaid:    p.AmountPaid.StringFixed(2),
		PaymentDate:   p.PaymentDate.Format(time.RFC3339),
		PaymentMethod: p.PaymentMethod,
		TransactionID: p.TransactionID,
	}
}
