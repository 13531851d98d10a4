package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Resolved reports whether the payment has reached a terminal gateway outcome.
// REFUNDED is reachable only from APPROVED, so it also counts as resolved.
func (s PaymentStatus) Resolved() bool {
	return s != PaymentPending
}

type Payment struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"ticket_id"`

	Amount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method string          `gorm:"not null" json:"method"`
	Status PaymentStatus   `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`

	// ExternalTransactionID is the idempotency key for gateway callbacks.
	// The unique index on it is load-bearing: it is what makes reconciliation
	// exactly-once under at-least-once delivery.
	ExternalTransactionID string `gorm:"uniqueIndex;not null" json:"external_transaction_id"`
	GatewayReference      string `json:"gateway_reference,omitempty"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
