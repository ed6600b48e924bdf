package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a bill issued to a customer. TotalAmount is the sum of
// its lines' totals and is recomputed once per line-batch commit; Paid
// is recomputed from the payment history on every payment insert.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer      *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	InvoiceNumber string          `gorm:"type:varchar(20);uniqueIndex;not null" json:"invoice_number"`
	Date          time.Time       `gorm:"index" json:"date"`
	DueDate       *time.Time      `json:"due_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	Paid          bool            `gorm:"not null;default:false" json:"paid"`
	Lines         []InvoiceLine   `gorm:"foreignKey:InvoiceID" json:"lines,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoiceLine is one product-quantity-price entry within an invoice.
// UnitPrice is captured at creation and does not follow later product
// price changes. ProductID is nulled if the product is deleted.
type InvoiceLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	ProductID *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	Product   *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Total     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (l *InvoiceLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
