package repository

import (
	"context"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	FindAll(ctx context.Context) ([]models.Event, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error)
	AddSoldTickets(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error

	CreateCategory(ctx context.Context, category *models.TicketCategory) error
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.TicketCategory, error)
	FindCategoryByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TicketCategory, error)
	AddSoldQuantity(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Preload("Categories").First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) FindAll(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	if err := r.db.WithContext(ctx).Preload("Categories").Order("starts_at ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindByIDForUpdate acquires a row-level lock on the event within the given
// transaction. Every capacity mutation goes through this lock.
func (r *eventRepository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&event, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) AddSoldTickets(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error {
	return tx.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Update("sold_tickets", gorm.Expr("sold_tickets + ?", delta)).Error
}

func (r *eventRepository) CreateCategory(ctx context.Context, category *models.TicketCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

func (r *eventRepository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*models.TicketCategory, error) {
	var category models.TicketCategory
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *eventRepository) FindCategoryByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.TicketCategory, error) {
	var category models.TicketCategory
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *eventRepository) AddSoldQuantity(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta int) error {
	return tx.WithContext(ctx).
		Model(&models.TicketCategory{}).
		Where("id = ?", id).
		Update("sold_quantity", gorm.Expr("sold_quantity + ?", delta)).Error
}
