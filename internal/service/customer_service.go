package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"billing-backend/internal/model"
	"billing-backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateCustomerRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type UpdateCustomerRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

type CustomerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

// --- Interface ---

type CustomerService interface {
	CreateCustomer(ctx context.Context, userID string, req CreateCustomerRequest) (CustomerResponse, error)
	UpdateCustomer(ctx context.Context, userID string, id string, req UpdateCustomerRequest) (CustomerResponse, error)
	DeleteCustomer(ctx context.Context, userID string, id string) error
	GetCustomer(ctx context.Context, id string) (CustomerResponse, error)
	ListCustomers(ctx context.Context, page, limit int, search string) ([]CustomerResponse, int64, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
	invoiceRepo  repository.InvoiceRepository
	paymentRepo  repository.PaymentRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewCustomerService(
	customerRepo repository.CustomerRepository,
	invoiceRepo repository.InvoiceRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CustomerService {
	return &customerService{
		customerRepo: customerRepo,
		invoiceRepo:  invoiceRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func validateEmail(email string) error {
	_, err := mail.ParseAddress(email)
	return err
}

func (s *customerService) CreateCustomer(ctx context.Context, userID string, req CreateCustomerRequest) (CustomerResponse, error) {
	verr := &ValidationError{}
	if req.Name == "" {
		verr.add("name", "is required")
	}
	if req.Email == "" {
		verr.add("email", "is required")
	} else if validateEmail(req.Email) != nil {
		verr.add("email", "must be a valid email address")
	}
	if err := verr.orNil(); err != nil {
		return CustomerResponse{}, err
	}

	customer := model.Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.customerRepo.Create(txCtx, &customer); createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return &ConflictError{Message: "a customer with email " + req.Email + " already exists"}
			}
			return fmt.Errorf("failed to create customer: %w", createErr)
		}
		return s.audit(txCtx, userID, model.ActionCreateCustomer, &customer, req)
	})
	if err != nil {
		return CustomerResponse{}, err
	}

	return toCustomerResponse(customer), nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, userID string, id string, req UpdateCustomerRequest) (CustomerResponse, error) {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return CustomerResponse{}, errInvalidID("customer_id")
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CustomerResponse{}, fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return CustomerResponse{}, fmt.Errorf("failed to load customer: %w", err)
	}

	if req.Name != nil {
		customer.Name = *req.Name
	}
	if req.Email != nil {
		if validateEmail(*req.Email) != nil {
			verr := &ValidationError{}
			verr.add("email", "must be a valid email address")
			return CustomerResponse{}, verr
		}
		customer.Email = *req.Email
	}
	if req.Phone != nil {
		customer.Phone = *req.Phone
	}
	if req.Address != nil {
		customer.Address = *req.Address
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if updateErr := s.customerRepo.Update(txCtx, customer); updateErr != nil {
			if errors.Is(updateErr, gorm.ErrDuplicatedKey) {
				return &ConflictError{Message: "a customer with email " + customer.Email + " already exists"}
			}
			return fmt.Errorf("failed to update customer: %w", updateErr)
		}
		return s.audit(txCtx, userID, model.ActionUpdateCustomer, customer, req)
	})
	if err != nil {
		return CustomerResponse{}, err
	}

	return toCustomerResponse(*customer), nil
}

// DeleteCustomer removes the customer and, in the same transaction,
// its invoices with their lines and payments.
func (s *customerService) DeleteCustomer(ctx context.Context, userID string, id string) error {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return errInvalidID("customer_id")
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to load customer: %w", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoices, listErr := s.invoiceRepo.ListByCustomer(txCtx, customerID)
		if listErr != nil {
			return fmt.Errorf("failed to load invoices: %w", listErr)
		}

		for _, invoice := range invoices {
			if delErr := s.paymentRepo.DeleteByInvoice(txCtx, invoice.ID); delErr != nil {
				return fmt.Errorf("failed to delete payments: %w", delErr)
			}
			if delErr := s.invoiceRepo.DeleteLinesByInvoice(txCtx, invoice.ID); delErr != nil {
				return fmt.Errorf("failed to delete invoice lines: %w", delErr)
			}
			if delErr := s.invoiceRepo.Delete(txCtx, invoice.ID); delErr != nil {
				return fmt.Errorf("failed to delete invoice: %w", delErr)
			}
		}

		if delErr := s.customerRepo.Delete(txCtx, customerID); delErr != nil {
			return fmt.Errorf("failed to delete customer: %w", delErr)
		}

		return s.audit(txCtx, userID, model.ActionDeleteCustomer, customer, map[string]interface{}{
			"deleted":          true,
			"invoices_deleted": len(invoices),
		})
	})
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (CustomerResponse, error) {
	customerID, err := uuid.Parse(id)
	if err != nil {
		return CustomerResponse{}, errInvalidID("customer_id")
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return CustomerResponse{}, fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		return CustomerResponse{}, fmt.Errorf("failed to load customer: %w", err)
	}

	return toCustomerResponse(*customer), nil
}

func (s *customerService) ListCustomers(ctx context.Context, page, limit int, search string) ([]CustomerResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	customers, total, err := s.customerRepo.List(ctx, page, limit, search)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch customers: %w", err)
	}

	result := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		result = append(result, toCustomerResponse(c))
	}
	return result, total, nil
}

func (s *customerService) audit(txCtx context.Context, userID string, action string, customer *model.Customer, payload interface{}) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   customer.ID.String(),
		EntityName: customer.Name,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(txCtx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func toCustomerResponse(c model.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Address:   c.Address,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}
