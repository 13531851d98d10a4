package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScannerStatus string

const (
	ScannerActive   ScannerStatus = "ACTIVE"
	ScannerInactive ScannerStatus = "INACTIVE"
)

type ScannerRole string

const (
	RoleValidator ScannerRole = "VALIDATOR"
)

// Scanner is a field device with redemption authority. It holds no tickets,
// only the capability to consume them.
type Scanner struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name    string    `gorm:"uniqueIndex;not null" json:"name"`
	APIKey  string    `gorm:"uniqueIndex;not null" json:"api_key"`
	// SecretHash is the bcrypt hash of the device secret. The plaintext is
	// returned exactly once, at registration or rotation.
	SecretHash string `gorm:"not null" json:"-"`

	Location string        `json:"location"`
	Role     ScannerRole   `gorm:"type:varchar(20);not null;default:'VALIDATOR'" json:"role"`
	Status   ScannerStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`

	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP string     `json:"last_used_ip,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Scanner) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
