package handler

import (
	"net/http"
	"strconv"

	"billing-backend/internal/middleware"
	"billing-backend/internal/pdf"
	"billing-backend/internal/service"
	"billing-backend/pkg/pagination"
	"billing-backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	paymentService service.PaymentService
}

func NewInvoiceHandler(invoiceService service.InvoiceService, paymentService service.PaymentService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		paymentService: paymentService,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", middleware.RequireRole("admin", "staff"), h.CreateInvoice)
		invoices.GET("", middleware.RequireRole("admin", "staff"), h.ListInvoices)
		invoices.GET("/:id", middleware.RequireRole("admin", "staff"), h.GetInvoice)
		invoices.GET("/:id/pdf", middleware.RequireRole("admin", "staff"), h.DownloadPDF)
		invoices.POST("/:id/payments", middleware.RequireRole("admin", "staff"), h.RecordPayment)
		invoices.GET("/:id/payments", middleware.RequireRole("admin", "staff"), h.ListPayments)
	}
}

// CreateInvoice creates an invoice with its line batch
// @Summary      Create invoice
// @Description  Creates an invoice with a nested batch of lines; stock is checked and decremented, the total is rolled up, all inside one transaction
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=service.InvoiceDetailResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices
// @Summary      List invoices
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        paid   query     bool  false  "Filter by paid flag"
// @Param        page   query     int   false  "Page number (default 1)"
// @Param        limit  query     int   false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      500    {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)

	filter := service.InvoiceFilter{Page: params.Page, Limit: params.Limit}
	if raw := c.Query("paid"); raw != "" {
		if paid, err := strconv.ParseBool(raw); err == nil {
			filter.Paid = &paid
		}
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// GetInvoice returns an invoice statement with computed balance
// @Summary      Get invoice
// @Description  Returns the invoice with its lines, payments, total paid and balance
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceDetailResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DownloadPDF streams the invoice as a PDF attachment
// @Summary      Download invoice PDF
// @Tags         invoices
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {file}    file
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadPDF(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	data, err := pdf.Render(toPDFData(invoice))
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "pdf generation failed: "+err.Error()))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+pdf.Filename(invoice.InvoiceNumber)+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

// RecordPayment records a payment against an invoice
// @Summary      Record payment
// @Description  Persists the payment and reconciles the invoice's paid flag in one transaction
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.RecordPaymentRequest  true  "Record Payment Payload"
// @Success      201      {object}  response.Response{data=service.PaymentResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), currentUserID(c), c.Param("id"), req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// ListPayments lists payments recorded against an invoice
// @Summary      List payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]service.PaymentResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	payments, err := h.paymentService.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, payments))
}

// toPDFData maps the computed statement view to the renderer's input.
func toPDFData(detail service.InvoiceDetailResponse) pdf.InvoiceData {
	data := pdf.InvoiceData{
		Number:          detail.InvoiceNumber,
		Date:            detail.Date,
		CustomerName:    detail.CustomerName,
		CustomerEmail:   detail.CustomerEmail,
		CustomerAddress: detail.CustomerAddress,
		TotalAmount:     detail.TotalAmount,
		TotalPaid:       detail.TotalPaid,
		Balance:         detail.Balance,
		Paid:            detail.Paid,
	}
	if detail.DueDate != nil {
		data.DueDate = *detail.DueDate
	}
	for _, line := range detail.Lines {
		desc := line.ProductName
		if desc == "" {
			desc = "Item"
		}
		data.Lines = append(data.Lines, pdf.LineData{
			Description: desc,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Total,
		})
	}
	for _, p := range detail.Payments {
		data.Payments = append(data.Payments, pdf.PaymentData{
			Date:          p.PaymentDate,
			Method:        p.PaymentMethod,
			Amount:        p.AmountPaid,
			TransactionID: p.TransactionID,
		})
	}
	return data
}
