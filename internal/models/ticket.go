package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TicketStatus string

const (
	TicketPending     TicketStatus = "PENDING"
	TicketActive      TicketStatus = "ACTIVE"
	TicketUsed        TicketStatus = "USED"
	TicketCancelled   TicketStatus = "CANCELLED"
	TicketTransferred TicketStatus = "TRANSFERRED"
)

// ticketTransitions is the full lifecycle. USED, CANCELLED and TRANSFERRED
// are terminal; anything not listed here is rejected.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketPending: {TicketActive, TicketCancelled},
	TicketActive:  {TicketUsed, TicketCancelled, TicketTransferred},
}

// CanTransition reports whether from -> to is a legal ticket status change.
func CanTransition(from, to TicketStatus) bool {
	for _, next := range ticketTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s TicketStatus) Terminal() bool {
	return len(ticketTransitions[s]) == 0
}

type Ticket struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;not null;index" json:"event_id"`
	CategoryID uuid.UUID `gorm:"type:uuid;not null;index" json:"category_id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// Purchase-time snapshot. Never updated after creation, even if the
	// event is edited later.
	EventTitle    string          `gorm:"not null" json:"event_title"`
	EventStartsAt time.Time       `gorm:"not null" json:"event_starts_at"`
	EventVenue    string          `gorm:"not null" json:"event_venue"`
	CategoryName  string          `gorm:"not null" json:"category_name"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`

	// QR credential. Empty until the ticket becomes ACTIVE: a QR for an
	// unpaid ticket must never exist.
	QRCode     *string `gorm:"uniqueIndex" json:"qr_code,omitempty"`
	QRCodeData *string `json:"qr_code_data,omitempty"`

	Status TicketStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	ReservedAt  time.Time  `gorm:"not null" json:"reserved_at"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expires_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	UsedAt      *time.Time `json:"used_at,omitempty"`

	UsedByScannerID *uuid.UUID `gorm:"type:uuid" json:"used_by_scanner_id,omitempty"`
	UsedAtLocation  string     `json:"used_at_location,omitempty"`

	TransferredAt *time.Time `json:"transferred_at,omitempty"`
	TransferredTo *uuid.UUID `gorm:"type:uuid" json:"transferred_to,omitempty"`

	HolderName     string `json:"holder_name,omitempty"`
	HolderDocument string `json:"holder_document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Event   *Event          `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Payment *Payment        `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"payment,omitempty"`
	Categ   *TicketCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Expired reports whether a PENDING reservation has outlived its TTL.
func (t *Ticket) Expired(now time.Time) bool {
	return t.Status == TicketPending && now.After(t.ExpiresAt)
}
