package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"billing-backend/internal/database"
	"billing-backend/internal/middleware"
	"billing-backend/internal/model"
	"billing-backend/internal/repository"
	"billing-backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	txManager := repository.NewTransactionManager(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	invoiceService := service.NewInvoiceService(invoiceRepo, customerRepo, productRepo, paymentRepo, auditRepo, txManager, nil)
	paymentService := service.NewPaymentService(paymentRepo, invoiceRepo, auditRepo, txManager, nil)

	router := gin.New()
	NewInvoiceHandler(invoiceService, paymentService).RegisterRoutes(router.Group(""))
	return router, db
}

func staffToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "b7f1f1c0-0000-4000-8000-000000000001",
		"username": "staffer",
		"role":     "staff",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, router *gin.Engine, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	router, db := setupRouter(t)
	token := staffToken(t)

	customer := model.Customer{Name: "Acme", Email: "acme@test"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	product := model.Product{Name: "Widget", Price: decimal.RequireFromString("5.00"), Stock: 10}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	body := `{"customer_id":"` + customer.ID.String() + `","lines":[{"product_id":"` + product.ID.String() + `","quantity":3}]}`
	w := doJSON(t, router, token, http.MethodPost, "/api/invoices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}

	var envelope struct {
		Status string                        `json:"status"`
		Data   service.InvoiceDetailResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Status != "success" {
		t.Errorf("status = %q", envelope.Status)
	}
	if envelope.Data.InvoiceNumber != "INV-00001" || envelope.Data.TotalAmount != "15.00" {
		t.Errorf("invoice = %+v", envelope.Data)
	}
}

func TestCreateInvoiceEndpointStockConflict(t *testing.T) {
	router, db := setupRouter(t)
	token := staffToken(t)

	customer := model.Customer{Name: "Acme", Email: "acme@test"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	product := model.Product{Name: "Widget", Price: decimal.RequireFromString("5.00"), Stock: 2}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	body := `{"customer_id":"` + customer.ID.String() + `","lines":[{"product_id":"` + product.ID.String() + `","quantity":5}]}`
	w := doJSON(t, router, token, http.MethodPost, "/api/invoices", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestInvoiceEndpointsRequireAuth(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(t, router, "", http.MethodGet, "/api/invoices", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRecordPaymentEndpoint(t *testing.T) {
	router, db := setupRouter(t)
	token := staffToken(t)

	customer := model.Customer{Name: "Acme", Email: "acme@test"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	body := `{"customer_id":"` + customer.ID.String() + `","lines":[{"quantity":1,"unit_price":"15.00"}]}`
	w := doJSON(t, router, token, http.MethodPost, "/api/invoices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create invoice: %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Data service.InvoiceDetailResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	w = doJSON(t, router, token, http.MethodPost, "/api/invoices/"+created.Data.ID+"/payments",
		`{"amount_paid":"15.00","payment_method":"cash"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("record payment: %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, token, http.MethodGet, "/api/invoices/"+created.Data.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get invoice: %d body=%s", w.Code, w.Body.String())
	}
	var detail struct {
		Data service.InvoiceDetailResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if !detail.Data.Paid || detail.Data.Balance != "0.00" {
		t.Errorf("paid=%v balance=%s, want settled at 0.00", detail.Data.Paid, detail.Data.Balance)
	}
}

func TestDownloadInvoicePDF(t *testing.T) {
	router, db := setupRouter(t)
	token := staffToken(t)

	customer := model.Customer{Name: "Acme", Email: "acme@test"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	body := `{"customer_id":"` + customer.ID.String() + `","lines":[{"quantity":2,"unit_price":"4.50"}]}`
	w := doJSON(t, router, token, http.MethodPost, "/api/invoices", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create invoice: %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Data service.InvoiceDetailResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	w = doJSON(t, router, token, http.MethodGet, "/api/invoices/"+created.Data.ID+"/pdf", "")
	if w.Code != http.StatusOK {
		t.Fatalf("download pdf: %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Invoice_INV-00001.pdf") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "%PDF") {
		t.Error("body is not a PDF document")
	}
}
