// Package pdf renders an invoice statement as a PDF document. It
// receives a fully computed view-model; no business arithmetic happens
// here.
package pdf

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type LineData struct {
	Description string
	Quantity    int
	UnitPrice   string
	Total       string
}

type PaymentData struct {
	Date          string
	Method        string
	Amount        string
	TransactionID string
}

// InvoiceData is the computed statement view-model: invoice header,
// lines, payments and the derived totals.
type InvoiceData struct {
	Number          string
	Date            string
	DueDate         string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	Lines           []LineData
	Payments        []PaymentData
	TotalAmount     string
	TotalPaid       string
	Balance         string
	Paid            bool
}

// Filename returns the download filename for an invoice document.
func Filename(invoiceNumber string) string {
	return "Invoice_" + invoiceNumber + ".pdf"
}

// Render produces the PDF bytes for one invoice.
func Render(data InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithRightMargin(15).
		WithTopMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Invoice "+data.Number, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, paidLabel(data.Paid), props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(5, text.NewCol(12, "Date: "+data.Date, props.Text{Size: 9}))
	if data.DueDate != "" {
		m.AddRow(5, text.NewCol(12, "Due: "+data.DueDate, props.Text{Size: 9}))
	}

	m.AddRow(4, col.New(12))
	m.AddRow(6, text.NewCol(12, "Billed to", props.Text{Size: 10, Style: fontstyle.Bold}))
	m.AddRow(5, text.NewCol(12, data.CustomerName, props.Text{Size: 9}))
	if data.CustomerEmail != "" {
		m.AddRow(5, text.NewCol(12, data.CustomerEmail, props.Text{Size: 9}))
	}
	if data.CustomerAddress != "" {
		m.AddRow(5, text.NewCol(12, data.CustomerAddress, props.Text{Size: 9}))
	}

	m.AddRow(6, col.New(12))
	m.AddRows(lineTable(data.Lines)...)

	m.AddRow(8,
		text.NewCol(8, "Total", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(4, data.TotalAmount, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	if len(data.Payments) > 0 {
		m.AddRow(6, col.New(12))
		m.AddRow(6, text.NewCol(12, "Payments", props.Text{Size: 10, Style: fontstyle.Bold}))
		for _, p := range data.Payments {
			desc := p.Date + "  " + p.Method
			if p.TransactionID != "" {
				desc += "  (" + p.TransactionID + ")"
			}
			m.AddRow(5,
				text.NewCol(8, desc, props.Text{Size: 9}),
				text.NewCol(4, p.Amount, props.Text{Size: 9, Align: align.Right}),
			)
		}
	}

	m.AddRow(4, line.NewCol(12))
	m.AddRow(6,
		text.NewCol(8, "Total paid", props.Text{Size: 9, Align: align.Right}),
		text.NewCol(4, data.TotalPaid, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(6,
		text.NewCol(8, "Balance", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		text.NewCol(4, data.Balance, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func lineTable(lines []LineData) []core.Row {
	rows := []core.Row{
		row.New(7).Add(
			text.NewCol(6, "Description", props.Text{Size: 9, Style: fontstyle.Bold}),
			text.NewCol(2, "Qty", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, "Unit price", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		),
		row.New(2).Add(line.NewCol(12)),
	}
	for _, l := range lines {
		rows = append(rows, row.New(6).Add(
			text.NewCol(6, l.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", l.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, l.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, l.Total, props.Text{Size: 9, Align: align.Right}),
		))
	}
	return rows
}

func paidLabel(paid bool) string {
	if paid {
		return "PAID"
	}
	return "UNPAID"
}
