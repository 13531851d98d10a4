package dto

import (
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketResponse struct {
	ID            uuid.UUID           `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	CategoryID    uuid.UUID           `json:"category_id"`
	UserID        uuid.UUID           `json:"user_id"`
	EventTitle    string              `json:"event_title"`
	EventStartsAt time.Time           `json:"event_starts_at"`
	EventVenue    string              `json:"event_venue"`
	CategoryName  string              `json:"category_name"`
	Price         decimal.Decimal     `json:"price"`
	Status        models.TicketStatus `json:"status"`
	QRCodeData    *string             `json:"qr_code_data,omitempty"`
	ExpiresAt     time.Time           `json:"expires_at"`
	UsedAt        *time.Time          `json:"used_at,omitempty"`
	Payment       *PaymentResponse    `json:"payment,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type PaymentResponse struct {
	ID                    uuid.UUID            `json:"id"`
	TicketID              uuid.UUID            `json:"ticket_id"`
	Amount                decimal.Decimal      `json:"amount"`
	Method                string               `json:"method"`
	Status                models.PaymentStatus `json:"status"`
	ExternalTransactionID string               `json:"external_transaction_id"`
	ResolvedAt            *time.Time           `json:"resolved_at,omitempty"`
}

type CategoryAvailability struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	MaxQuantity  int             `json:"max_quantity"`
	SoldQuantity int             `json:"sold_quantity"`
	Available    int             `json:"available"`
	IsActive     bool            `json:"is_active"`
}

type EventResponse struct {
	ID          uuid.UUID              `json:"id"`
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Venue       string                 `json:"venue"`
	StartsAt    time.Time              `json:"starts_at"`
	MaxCapacity int                    `json:"max_capacity"`
	SoldTickets int                    `json:"sold_tickets"`
	Available   int                    `json:"available"`
	Status      models.EventStatus     `json:"status"`
	Categories  []CategoryAvailability `json:"categories,omitempty"`
}

type ScanResponse struct {
	Result     service.RedemptionCode `json:"result"`
	TicketID   *uuid.UUID             `json:"ticket_id,omitempty"`
	HolderName string                 `json:"holder_name,omitempty"`
	RedeemedAt *time.Time             `json:"redeemed_at,omitempty"`
}

type RegisteredScannerResponse struct {
	ID       uuid.UUID            `json:"id"`
	Name     string               `json:"name"`
	Location string               `json:"location"`
	Status   models.ScannerStatus `json:"status"`
	APIKey   string               `json:"api_key"`
	// Secret is shown exactly once; only its hash is stored.
	Secret string `json:"secret,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func ToTicketResponse(t *models.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		EventID:       t.EventID,
		CategoryID:    t.CategoryID,
		UserID:        t.UserID,
		EventTitle:    t.EventTitle,
		EventStartsAt: t.EventStartsAt,
		EventVenue:    t.EventVenue,
		CategoryName:  t.CategoryName,
		Price:         t.Price,
		Status:        t.Status,
		QRCodeData:    t.QRCodeData,
		ExpiresAt:     t.ExpiresAt,
		UsedAt:        t.UsedAt,
		CreatedAt:     t.CreatedAt,
	}
	if t.Payment != nil {
		p := ToPaymentResponse(t.Payment)
		resp.Payment = &p
	}
	return resp
}

func ToPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                    p.ID,
		TicketID:              p.TicketID,
		Amount:                p.Amount,
		Method:                p.Method,
		Status:                p.Status,
		ExternalTransactionID: p.ExternalTransactionID,
		ResolvedAt:            p.ResolvedAt,
	}
}

func ToEventResponse(e *models.Event) EventResponse {
	resp := EventResponse{
		ID:          e.ID,
		Code:        e.Code,
		Name:        e.Name,
		Description: e.Description,
		Venue:       e.Venue,
		StartsAt:    e.StartsAt,
		MaxCapacity: e.MaxCapacity,
		SoldTickets: e.SoldTickets,
		Available:   e.MaxCapacity - e.SoldTickets,
		Status:      e.Status,
	}
	for _, c := range e.Categories {
		resp.Categories = append(resp.Categories, CategoryAvailability{
			ID:           c.ID,
			Name:         c.Name,
			Price:        c.Price,
			MaxQuantity:  c.MaxQuantity,
			SoldQuantity: c.SoldQuantity,
			Available:    c.MaxQuantity - c.SoldQuantity,
			IsActive:     c.IsActive,
		})
	}
	return resp
}

func ToScanResponse(r *service.RedemptionResult) ScanResponse {
	resp := ScanResponse{
		Result:     r.Code,
		HolderName: r.HolderName,
		RedeemedAt: r.RedeemedAt,
	}
	if r.Ticket != nil {
		resp.TicketID = &r.Ticket.ID
	}
	return resp
}

func ToRegisteredScannerResponse(r *service.RegisteredScanner) RegisteredScannerResponse {
	return RegisteredScannerResponse{
		ID:       r.Scanner.ID,
		Name:     r.Scanner.Name,
		Location: r.Scanner.Location,
		Status:   r.Scanner.Status,
		APIKey:   r.Scanner.APIKey,
		Secret:   r.Secret,
	}
}
