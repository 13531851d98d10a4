package repository

import (
	"context"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error)
	FindByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.Payment, error)
	FindByExternalIDForUpdate(ctx context.Context, tx *gorm.DB, externalID string) (*models.Payment, error)
	FindByTicketIDForUpdate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*models.Payment, error)
	Save(ctx context.Context, tx *gorm.DB, payment *models.Payment) error
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	return tx.WithContext(ctx).Create(payment).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByExternalID is an unlocked read, used to resolve a gateway transaction
// id to its ticket before any row locks are taken.
func (r *paymentRepository) FindByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.WithContext(ctx).
		First(&payment, "external_transaction_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByExternalIDForUpdate locks the payment row for the duration of a
// reconciliation. Combined with the unique index on the external id this
// serializes duplicate gateway callbacks.
func (r *paymentRepository) FindByExternalIDForUpdate(ctx context.Context, tx *gorm.DB, externalID string) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "external_transaction_id = ?", externalID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByTicketIDForUpdate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&payment, "ticket_id = ?", ticketID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Save(ctx context.Context, tx *gorm.DB, payment *models.Payment) error {
	return tx.WithContext(ctx).Save(payment).Error
}
