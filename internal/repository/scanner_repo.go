package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ScannerRepository interface {
	Create(ctx context.Context, scanner *models.Scanner) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Scanner, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Scanner, error)
	Save(ctx context.Context, scanner *models.Scanner) error
	TouchUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, usedAt time.Time, ip string) error
}

type scannerRepository struct {
	db *gorm.DB
}

func NewScannerRepository(db *gorm.DB) ScannerRepository {
	return &scannerRepository{db: db}
}

func (r *scannerRepository) Create(ctx context.Context, scanner *models.Scanner) error {
	return r.db.WithContext(ctx).Create(scanner).Error
}

func (r *scannerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Scanner, error) {
	var scanner models.Scanner
	if err := r.db.WithContext(ctx).First(&scanner, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &scanner, nil
}

func (r *scannerRepository) FindByAPIKey(ctx context.Context, apiKey string) (*models.Scanner, error) {
	var scanner models.Scanner
	if err := r.db.WithContext(ctx).First(&scanner, "api_key = ?", apiKey).Error; err != nil {
		return nil, err
	}
	return &scanner, nil
}

func (r *scannerRepository) Save(ctx context.Context, scanner *models.Scanner) error {
	return r.db.WithContext(ctx).Save(scanner).Error
}

func (r *scannerRepository) TouchUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID, usedAt time.Time, ip string) error {
	return tx.WithContext(ctx).
		Model(&models.Scanner{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_used_at": usedAt, "last_used_ip": ip}).Error
}
