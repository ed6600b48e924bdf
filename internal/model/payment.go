package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod enum constants
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
	PaymentMethodUPI  = "upi"
	PaymentMethodBank = "bank"
)

// Payment records money received against an invoice. Payments are
// append-only; there is no removal path.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Invoice       *Invoice        `gorm:"foreignKey:InvoiceID" json:"-"`
	AmountPaid    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount_paid"`
	PaymentDate   time.Time       `gorm:"index" json:"payment_date"`
	PaymentMethod string          `gorm:"type:varchar(50);not null" json:"payment_method"` // cash, card, upi, bank
	TransactionID string          `gorm:"type:varchar(100)" json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
