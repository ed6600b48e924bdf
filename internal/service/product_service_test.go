package service

import (
	"context"
	"errors"
	"testing"

	"billing-backend/internal/model"
)

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  CreateProductRequest
	}{
		{"missing name", CreateProductRequest{Price: "5.00"}},
		{"bad price", CreateProductRequest{Name: "Widget", Price: "abc"}},
		{"negative price", CreateProductRequest{Name: "Widget", Price: "-5.00"}},
		{"negative stock", CreateProductRequest{Name: "Widget", Price: "5.00", Stock: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.products.CreateProduct(context.Background(), env.userID(), tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.products.CreateProduct(context.Background(), env.userID(), CreateProductRequest{
		Name:        "Widget",
		Description: "A widget",
		Price:       "5.50",
		Stock:       10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.Price != "5.50" || created.Stock != 10 {
		t.Errorf("created = %+v", created)
	}

	got, err := env.products.GetProduct(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got != created {
		t.Errorf("get = %+v, want %+v", got, created)
	}
}

func TestUpdateProductPartial(t *testing.T) {
	env := newTestEnv(t)
	product := seedProduct(t, env.db, "Widget", "5.00", 10)

	stock := 25
	updated, err := env.products.UpdateProduct(context.Background(), env.userID(), product.ID.String(), UpdateProductRequest{
		Stock: &stock,
	})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.Stock != 25 {
		t.Errorf("stock = %d, want 25", updated.Stock)
	}
	if updated.Price != "5.00" || updated.Name != "Widget" {
		t.Errorf("untouched fields changed: %+v", updated)
	}
}

func TestDeleteProductDetachesLines(t *testing.T) {
	env := newTestEnv(t)
	customer := seedCustomer(t, env.db, "Acme", "acme@test")
	product := seedProduct(t, env.db, "Widget", "5.00", 10)

	detail, err := env.invoices.CreateInvoice(context.Background(), env.userID(), CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Lines:      []InvoiceLineRequest{{ProductID: product.ID.String(), Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if err := env.products.DeleteProduct(context.Background(), env.userID(), product.ID.String()); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	var line model.InvoiceLine
	if err := env.db.First(&line, "invoice_id = ?", detail.ID).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	if line.ProductID != nil {
		t.Error("line still references the deleted product")
	}
	// captured price and total survive the product
	if line.UnitPrice.StringFixed(2) != "5.00" || line.Total.StringFixed(2) != "10.00" {
		t.Errorf("line amounts changed: unit %s total %s", line.UnitPrice.StringFixed(2), line.Total.StringFixed(2))
	}

	if _, err := env.products.GetProduct(context.Background(), product.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
