package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateEventRequest struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Venue       string                  `json:"venue"`
	StartsAt    time.Time               `json:"starts_at"`
	MaxCapacity int                     `json:"max_capacity"`
	Categories  []CreateCategoryRequest `json:"categories"`
}

type CreateCategoryRequest struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	MaxQuantity int             `json:"max_quantity"`
}

type PurchaseTicketRequest struct {
	EventID        uuid.UUID `json:"event_id"`
	CategoryID     uuid.UUID `json:"category_id"`
	UserID         uuid.UUID `json:"user_id"`
	Method         string    `json:"method"`
	HolderName     string    `json:"holder_name"`
	HolderDocument string    `json:"holder_document"`
}

type TransferTicketRequest struct {
	NewUserID      uuid.UUID `json:"new_user_id"`
	HolderName     string    `json:"holder_name"`
	HolderDocument string    `json:"holder_document"`
}

// PaymentWebhookRequest is what the gateway posts back, keyed by the
// external transaction id handed out at purchase time.
type PaymentWebhookRequest struct {
	ExternalTransactionID string `json:"external_transaction_id"`
	Outcome               string `json:"outcome"`
	GatewayReference      string `json:"gateway_reference"`
}

type ScanRequest struct {
	QRData string `json:"qr_data"`
}

type RegisterScannerRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type ScannerStatusRequest struct {
	Status string `json:"status"`
}
