package service

import (
	"context"
	"errors"
	"testing"

	"billing-backend/internal/model"
)

// creates an invoice with a single free-form line totalling the given amount
func createInvoiceTotalling(t *testing.T, env *testEnv, customer model.Customer, amount string) InvoiceDetailResponse {
	t.Helper()
	detail, err := env.invoices.CreateInvoice(context.Background(), env.userID(), CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Lines:      []InvoiceLineRequest{{Quantity: 1, UnitPrice: amount}},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return detail
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	env := newTestEnv(t)
	customer := seedCustomer(t, env.db, "Acme", "acme@test")
	invoice := createInvoiceTotalling(t, env, customer, "15.00")

	payment, err := env.payments.RecordPayment(context.Background(), env.userID(), invoice.ID, RecordPaymentRequest{
		AmountPaid:    "15.00",
		PaymentMethod: "card",
		TransactionID: "txn-123",
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if payment.AmountPaid != "15.00" || payment.PaymentMethod != "card" || payment.TransactionID != "txn-123" {
		t.Errorf("payment = %+v", payment)
	}

	detail, err := env.invoices.GetInvoice(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if !detail.Paid {
		t.Error("invoice must be marked paid")
	}
	if detail.TotalPaid != "15.00" || detail.Balance != "0.00" {
		t.Errorf("total paid %s balance %s, want 15.00 and 0.00", detail.TotalPaid, detail.Balance)
	}
}

func TestRecordPartialPayments(t *testing.T) {
	env := newTestEnv(t)
	customer := seedCustomer(t, env.db, "Acme", "acme@test")
	invoice := createInvoiceTotalling(t, env, customer, "15.00")

	if _, err := env.payments.RecordPayment(context.Background(), env.userID(), invoice.ID, RecordPaymentRequest{
		AmountPaid: "5.00", PaymentMethod: "cash",
	}); err != nil {
		t.Fatalf("first payment: %v", err)
	}

	detail, err := env.invoices.GetInvoice(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if detail.Paid {
		t.Error("partially paid invoice must not be marked paid")
	}
	if detail.Balance != "10.00" {
		t.Errorf("balance = %s, want 10.00", detail.Balance)
	}

	// the remainder settles it
	if _, err := env.payments.RecordPayment(context.Background(), env.userID(), invoice.ID, RecordPaymentRequest{
		AmountPaid: "10.00", PaymentMethod: "upi",
	}); err != nil {
		t.Fatalf("second payment: %v", err)
	}
	detail, err = env.invoices.GetInvoice(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if !detail.Paid || detail.Balance != "0.00" {
		t.Errorf("paid=%v balance=%s, want settled at 0.00", detail.Paid, detail.Balance)
	}
	if len(detail.Payments) != 2 {
		t.Errorf("expected 2 payments, got %d", len(detail.Payments))
	}
}

func TestRecordOverpayment(t *testing.T) {
	env := newTestEnv(t)
	customer := seedCustomer(t, env.db, "Acme", "acme@test")
	invoice := createInvoiceTotalling(t, env, customer, "15.00")

	if _, err := env.payments.RecordPayment(context.Background(), env.userID(), invoice.ID, RecordPaymentRequest{
		AmountPaid: "20.00", PaymentMethod: "bank",
	}); err != nil {
		t.Fatalf("record payment: %v", err)
	}

	detail, err := env.invoices.GetInvoice(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if !detail.Paid {
		t.Error("overpaid invoice must be marked paid")
	}
	if detail.Balance != "-5.00" {
		t.Errorf("balance = %s, want -5.00", detail.Balance)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	env := newTestEnv(t)
	customer := seedCustomer(t, env.db, "Acme", "acme@test")
	invoice := createInvoiceTotalling(t, env, customer, "15.00")

	cases := []struct {
		name string
		req  RecordPaymentRequest
	}{
		{"zero amount", RecordPaymentRequest{AmountPaid: "0", PaymentMethod: "cash"}},
		{"negative amount", RecordPaymentRequest{AmountPaid: "-1.00", PaymentMethod: "cash"}},
		{"not a number", RecordPaymentRequest{AmountPaid: "abc", PaymentMethod: "cash"}},
		{"bad method", RecordPaymentRequest{AmountPaid: "5.00", PaymentMethod: "crypto"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.payments.RecordPayment(context.Background(), env.userID(), invoice.ID, tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	// no write may have happened
	var count int64
	env.db.Model(&model.Payment{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected payments persisted %d rows", count)
	}
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.payments.RecordPayment(context.Background(), env.userID(), "b7f1f1c0-0000-4000-8000-000000000000", RecordPaymentRequest{
		AmountPaid: "5.00", PaymentMethod: "cash",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPaymentsOrdered(t *testing.T) {
	env := newTestEnv(t)
	customer := seedCustomer(t, env.db, "Acme", "acme@test")
	invoice := createInvoiceTotalling(t, env, customer, "30.00")

	for _, amount := range []string{"10.00", "20.00"} {
		if _, err := env.payments.RecordPayment(context.Background(), env.userID(), invoice.ID, RecordPaymentRequest{
			AmountPaid: amount, PaymentMethod: "cash",
		}); err != nil {
			t.Fatalf("record payment %s: %v", amount, err)
		}
	}

	payments, err := env.payments.ListPayments(context.Background(), invoice.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
	if payments[0].AmountPaid != "10.00" || payments[1].AmountPaid != "20.00" {
		t.Errorf("payments out of order: %s then %s", payments[0].AmountPaid, payments[1].AmountPaid)
	}
}
