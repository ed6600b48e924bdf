package service

import (
	"fmt"
	"testing"

	"billing-backend/internal/database"
	"billing-backend/internal/model"
	"billing-backend/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db        *gorm.DB
	customers CustomerService
	products  ProductService
	invoices  InvoiceService
	payments  PaymentService
	user      model.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	txManager := repository.NewTransactionManager(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	user := model.User{Username: "tester", Email: "tester@test", Password: "x", Role: "admin"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return &testEnv{
		db:        db,
		customers: NewCustomerService(customerRepo, invoiceRepo, paymentRepo, auditRepo, txManager),
		products:  NewProductService(productRepo, invoiceRepo, auditRepo, txManager),
		invoices:  NewInvoiceService(invoiceRepo, customerRepo, productRepo, paymentRepo, auditRepo, txManager, nil),
		payments:  NewPaymentService(paymentRepo, invoiceRepo, auditRepo, txManager, nil),
		user:      user,
	}
}

func (e *testEnv) userID() string {
	return e.user.ID.String()
}

func seedCustomer(t *testing.T, db *gorm.DB, name, email string) model.Customer {
	t.Helper()
	customer := model.Customer{Name: name, Email: email, Phone: "555-0100", Address: "1 Main St"}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) model.Product {
	t.Helper()
	product := model.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}
