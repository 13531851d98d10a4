package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EventStatus string

const (
	EventActive    EventStatus = "ACTIVE"
	EventCancelled EventStatus = "CANCELLED"
	EventFinished  EventStatus = "FINISHED"
)

type Event struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string      `gorm:"uniqueIndex;not null" json:"code"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `json:"description"`
	Venue       string      `gorm:"not null" json:"venue"`
	StartsAt    time.Time   `gorm:"not null" json:"starts_at"`
	MaxCapacity int         `gorm:"not null" json:"max_capacity"`
	SoldTickets int         `gorm:"not null;default:0" json:"sold_tickets"`
	Status      EventStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	Categories []TicketCategory `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"categories,omitempty"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type TicketCategory struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EventID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"event_id"`
	Name         string          `gorm:"not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	MaxQuantity  int             `gorm:"not null" json:"max_quantity"`
	SoldQuantity int             `gorm:"not null;default:0" json:"sold_quantity"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (c *TicketCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
