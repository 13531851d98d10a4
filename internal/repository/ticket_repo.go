package repository

import (
	"context"
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TicketRepository interface {
	Create(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ticket, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Ticket, error)
	Save(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error
	UpdateStatusFrom(ctx context.Context, tx *gorm.DB, id uuid.UUID, from models.TicketStatus, updates map[string]any) (bool, error)
	GetDB() *gorm.DB
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *ticketRepository) Create(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error {
	return tx.WithContext(ctx).Create(ticket).Error
}

func (r *ticketRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Preload("Payment").First(&ticket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ticket, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := r.db.WithContext(ctx).
		Preload("Payment").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

// FindExpiredPending returns PENDING tickets past their reservation TTL.
// The sweep re-checks each ticket under a row lock before cancelling, so a
// stale read here is harmless.
func (r *ticketRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.TicketPending, now).
		Limit(limit).
		Find(&tickets).Error; err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Save(ctx context.Context, tx *gorm.DB, ticket *models.Ticket) error {
	return tx.WithContext(ctx).Save(ticket).Error
}

// UpdateStatusFrom performs a guarded status transition: the update applies
// only if the ticket is still in the expected state. Returns false when the
// guard misses, which is how concurrent redeemers and sweepers lose races
// without ever double-applying side effects.
func (r *ticketRepository) UpdateStatusFrom(ctx context.Context, tx *gorm.DB, id uuid.UUID, from models.TicketStatus, updates map[string]any) (bool, error) {
	res := tx.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
