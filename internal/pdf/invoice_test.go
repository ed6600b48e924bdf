package pdf

import (
	"bytes"
	"testing"
)

func TestFilename(t *testing.T) {
	if got := Filename("INV-00042"); got != "Invoice_INV-00042.pdf" {
		t.Errorf("Filename = %q, want Invoice_INV-00042.pdf", got)
	}
}

func TestRenderProducesPDF(t *testing.T) {
	data := InvoiceData{
		Number:          "INV-00001",
		Date:            "2026-08-31",
		DueDate:         "2026-09-30",
		CustomerName:    "Acme Corp",
		CustomerEmail:   "billing@acme.test",
		CustomerAddress: "1 Main St",
		Lines: []LineData{
			{Description: "Widget", Quantity: 3, UnitPrice: "5.00", Total: "15.00"},
			{Description: "Gadget", Quantity: 1, UnitPrice: "9.99", Total: "9.99"},
		},
		Payments: []PaymentData{
			{Date: "2026-08-31", Method: "card", Amount: "10.00", TransactionID: "txn-1"},
		},
		TotalAmount: "24.99",
		TotalPaid:   "10.00",
		Balance:     "14.99",
	}

	out, err := Render(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not start with %%PDF header")
	}
}

func TestRenderEmptyInvoice(t *testing.T) {
	out, err := Render(InvoiceData{
		Number:       "INV-00002",
		Date:         "2026-08-31",
		CustomerName: "Acme Corp",
		TotalAmount:  "0.00",
		TotalPaid:    "0.00",
		Balance:      "0.00",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not start with %%PDF header")
	}
}
