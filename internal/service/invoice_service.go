package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"billing-backend/internal/model"
	"billing-backend/internal/repository"
	ws "billing-backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type InvoiceLineRequest struct {
	ProductID string `json:"product_id"`                           // optional; empty means a free-form line
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	UnitPrice string `json:"unit_price"`                           // decimal string; defaults to the product price
}

type CreateInvoiceRequest struct {
	CustomerID string               `json:"customer_id" binding:"required"`
	DueDate    string               `json:"due_date"` // YYYY-MM-DD, optional
	Lines      []InvoiceLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type InvoiceFilter struct {
	Paid  *bool
	Page  int
	Limit int
}

type InvoiceLineResponse struct {
	ID          string  `json:"id"`
	ProductID   *string `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   string  `json:"unit_price"`
	Total       string  `json:"total"`
}

type InvoiceResponse struct {
	ID            string  `json:"id"`
	InvoiceNumber string  `json:"invoice_number"`
	CustomerID    string  `json:"customer_id"`
	CustomerName  string  `json:"customer_name,omitempty"`
	Date          string  `json:"date"`
	DueDate       *string `json:"due_date"`
	TotalAmount   string  `json:"total_amount"`
	Paid          bool    `json:"paid"`
}

// InvoiceDetailResponse is the statement view: lines, payments and the
// derived totals. TotalPaid and Balance are computed fresh on every
// read, never stored; Balance goes negative on overpayment.
type InvoiceDetailResponse struct {
	InvoiceResponse
	CustomerEmail   string                `json:"customer_email"`
	CustomerAddress string                `json:"customer_address"`
	Lines           []InvoiceLineResponse `json:"lines"`
	Payments        []PaymentResponse     `json:"payments"`
	TotalPaid       string                `json:"total_paid"`
	Balance         string                `json:"balance"`
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, userID string, req CreateInvoiceRequest) (InvoiceDetailResponse, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, id string) (InvoiceDetailResponse, error)
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
	paymentRepo  repository.PaymentRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	hub          *ws.Hub
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		productRepo:  productRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

// --- Invoice numbering ---

// nextInvoiceNumber parses the numeric suffix of the previous invoice
// number and formats the next one. A malformed suffix is an error, not
// a silent reset.
func nextInvoiceNumber(last string) (string, error) {
	suffix := last[strings.LastIndex(last, "-")+1:]
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", fmt.Errorf("malformed invoice number %q: %w", last, err)
	}
	return fmt.Sprintf("INV-%05d", n+1), nil
}

// generateInvoiceNumber derives the next sequential number from the
// most recently created invoice. The read is unlocked: concurrent
// creations may derive the same number and one of them then fails at
// the unique index.
func (s *invoiceService) generateInvoiceNumber(ctx context.Context) (string, error) {
	last, err := s.invoiceRepo.FindLast(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "INV-00001", nil
		}
		return "", err
	}
	return nextInvoiceNumber(last.InvoiceNumber)
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, userID string, req CreateInvoiceRequest) (InvoiceDetailResponse, error) {
	customerID, dueDate, verr := s.validateCreate(req)
	if verr != nil {
		return InvoiceDetailResponse{}, verr
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceDetailResponse{}, fmt.Errorf("customer %s: %w", req.CustomerID, ErrNotFound)
		}
		return InvoiceDetailResponse{}, fmt.Errorf("failed to load customer: %w", err)
	}

	var invoice model.Invoice
	var stockEvents []map[string]interface{}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, numErr := s.generateInvoiceNumber(txCtx)
		if numErr != nil {
			return numErr
		}

		invoice = model.Invoice{
			CustomerID:    customer.ID,
			InvoiceNumber: number,
			Date:          time.Now(),
			DueDate:       dueDate,
			TotalAmount:   decimal.Zero,
		}
		if createErr := s.invoiceRepo.Create(txCtx, &invoice); createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return &ConflictError{Message: "invoice number " + number + " already exists"}
			}
			return fmt.Errorf("failed to create invoice: %w", createErr)
		}

		for i, lineReq := range req.Lines {
			event, lineErr := s.commitLine(txCtx, invoice.ID, lineReq)
			if lineErr != nil {
				return fmt.Errorf("line %d: %w", i, lineErr)
			}
			if event != nil {
				stockEvents = append(stockEvents, event)
			}
		}

		// Single total rollup for the whole batch.
		if rollErr := s.recomputeTotal(txCtx, &invoice); rollErr != nil {
			return rollErr
		}

		return s.auditCreate(txCtx, userID, &invoice, customer.Name, len(req.Lines))
	})
	if err != nil {
		return InvoiceDetailResponse{}, err
	}

	for _, event := range stockEvents {
		s.notify("stock.updated", event)
	}
	s.notify("invoice.created", map[string]interface{}{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"total_amount":   invoice.TotalAmount.StringFixed(2),
	})

	return s.GetInvoice(ctx, invoice.ID.String())
}

func (s *invoiceService) validateCreate(req CreateInvoiceRequest) (uuid.UUID, *time.Time, error) {
	verr := &ValidationError{}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		verr.add("customer_id", "must be a valid id")
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, parseErr := time.Parse("2006-01-02", req.DueDate)
		if parseErr != nil {
			verr.add("due_date", "must be formatted YYYY-MM-DD")
		} else {
			dueDate = &parsed
		}
	}

	if len(req.Lines) == 0 {
		verr.add("lines", "at least one line is required")
	}
	for i, line := range req.Lines {
		field := "lines[" + strconv.Itoa(i) + "]"
		if line.Quantity <= 0 {
			verr.add(field+".quantity", "must be a positive integer")
		}
		if line.ProductID != "" {
			if _, parseErr := uuid.Parse(line.ProductID); parseErr != nil {
				verr.add(field+".product_id", "must be a valid id")
			}
		}
		if line.UnitPrice != "" {
			if _, parseErr := decimal.NewFromString(line.UnitPrice); parseErr != nil {
				verr.add(field+".unit_price", "must be a decimal amount")
			}
		} else if line.ProductID == "" {
			verr.add(field+".unit_price", "required when no product is referenced")
		}
	}

	if err := verr.orNil(); err != nil {
		return uuid.Nil, nil, err
	}
	return customerID, dueDate, nil
}

// commitLine validates stock, computes the line total, persists the
// line and decrements the product's stock, all inside the caller's
// transaction so a failure anywhere rolls the whole batch back.
func (s *invoiceService) commitLine(txCtx context.Context, invoiceID uuid.UUID, req InvoiceLineRequest) (map[string]interface{}, error) {
	var product *model.Product
	if req.ProductID != "" {
		productID, _ := uuid.Parse(req.ProductID)
		locked, err := s.productRepo.FindByIDForUpdate(txCtx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product %s: %w", req.ProductID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		product = locked

		if req.Quantity > product.Stock {
			return nil, &StockExceededError{
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   req.Quantity,
			}
		}
	}

	unitPrice := decimal.Zero
	if req.UnitPrice != "" {
		unitPrice, _ = decimal.NewFromString(req.UnitPrice)
	} else if product != nil {
		// capture the current product price; later price changes do
		// not touch the line
		unitPrice = product.Price
	}

	line := model.InvoiceLine{
		InvoiceID: invoiceID,
		Quantity:  req.Quantity,
		UnitPrice: unitPrice,
		Total:     unitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2),
	}
	if product != nil {
		line.ProductID = &product.ID
	}
	if err := s.invoiceRepo.CreateLine(txCtx, &line); err != nil {
		return nil, fmt.Errorf("failed to create invoice line: %w", err)
	}

	if product == nil {
		return nil, nil
	}

	// Safety floor: unreachable given the check above, but stock must
	// never go negative.
	newStock := product.Stock - req.Quantity
	if newStock < 0 {
		newStock = 0
	}
	if err := s.productRepo.UpdateStock(txCtx, product.ID, newStock); err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	return map[string]interface{}{
		"product_id":   product.ID.String(),
		"product_name": product.Name,
		"stock":        newStock,
	}, nil
}

// recomputeTotal re-sums all current lines of the invoice and persists
// the result once. Calling it again with unchanged lines yields the
// same total.
func (s *invoiceService) recomputeTotal(txCtx context.Context, invoice *model.Invoice) error {
	lines, err := s.invoiceRepo.LinesByInvoice(txCtx, invoice.ID)
	if err != nil {
		return fmt.Errorf("failed to load invoice lines: %w", err)
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Total)
	}

	invoice.TotalAmount = total
	if err := s.invoiceRepo.Update(txCtx, invoice); err != nil {
		return fmt.Errorf("failed to update invoice total: %w", err)
	}
	return nil
}

func (s *invoiceService) auditCreate(txCtx context.Context, userID string, invoice *model.Invoice, customerName string, lineCount int) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	details, _ := json.Marshal(map[string]interface{}{
		"invoice_number": invoice.InvoiceNumber,
		"customer":       customerName,
		"total_amount":   invoice.TotalAmount.StringFixed(2),
		"lines":          lineCount,
	})
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     model.ActionCreateInvoice,
		EntityID:   invoice.ID.String(),
		EntityName: invoice.InvoiceNumber,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(txCtx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	invoices, total, err := s.invoiceRepo.List(ctx, filter.Paid, filter.Page, filter.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, toInvoiceResponse(inv))
	}
	return result, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceDetailResponse, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceDetailResponse{}, errInvalidID("invoice_id")
	}

	invoice, err := s.invoiceRepo.FindByIDWithDetails(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceDetailResponse{}, fmt.Errorf("invoice %s: %w", id, ErrNotFound)
		}
		return InvoiceDetailResponse{}, fmt.Errorf("failed to load invoice: %w", err)
	}

	payments, err := s.paymentRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return InvoiceDetailResponse{}, fmt.Errorf("failed to load payments: %w", err)
	}

	return toInvoiceDetailResponse(invoice, payments), nil
}

func (s *invoiceService) notify(event string, data map[string]interface{}) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": data})
	if err != nil {
		return
	}
	s.hub.Broadcast <- msg
}

// --- Mapping ---

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		CustomerID:    inv.CustomerID.String(),
		Date:          inv.Date.Format(time.RFC3339),
		TotalAmount:   inv.TotalAmount.StringFixed(2),
		Paid:          inv.Paid,
	}
	if inv.Customer != nil {
		resp.CustomerName = inv.Customer.Name
	}
	if inv.DueDate != nil {
		s := inv.DueDate.Format("2006-01-02")
		resp.DueDate = &s
	}
	return resp
}

func toInvoiceDetailResponse(inv *model.Invoice, payments []model.Payment) InvoiceDetailResponse {
	detail := InvoiceDetailResponse{
		InvoiceResponse: toInvoiceResponse(*inv),
		Lines:           make([]InvoiceLineResponse, 0, len(inv.Lines)),
		Payments:        make([]PaymentResponse, 0, len(payments)),
	}
	if inv.Customer != nil {
		detail.CustomerEmail = inv.Customer.Email
		detail.CustomerAddress = inv.Customer.Address
	}

	for _, line := range inv.Lines {
		lineResp := InvoiceLineResponse{
			ID:        line.ID.String(),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Total:     line.Total.StringFixed(2),
		}
		if line.ProductID != nil {
			id := line.ProductID.String()
			lineResp.ProductID = &id
		}
		if line.Product != nil {
			lineResp.ProductName = line.Product.Name
		}
		detail.Lines = append(detail.Lines, lineResp)
	}

	totalPaid := decimal.Zero
	for _, p := range payments {
		detail.Payments = append(detail.Payments, toPaymentResponse(p))
		totalPaid = totalPaid.Add(p.AmountPaid)
	}

	detail.TotalPaid = totalPaid.StringFixed(2)
	// not clamped: overpayment shows as a negative balance
	detail.Balance = inv.TotalAmount.Sub(totalPaid).StringFixed(2)
	return detail
}
