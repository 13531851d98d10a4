package service

import (
	"context"
	"errors"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryLedger owns the sold/max counters. Both counters move together or
// not at all; callers must invoke it inside the transaction that creates or
// resolves the ticket, so no intermediate counter state is ever observable.
type InventoryLedger interface {
	// Reserve returns the locked event and category rows so the caller can
	// snapshot their facts onto the ticket without re-reading.
	Reserve(ctx context.Context, tx *gorm.DB, eventID, categoryID uuid.UUID, quantity int) (*models.Event, *models.TicketCategory, error)
	Release(ctx context.Context, tx *gorm.DB, eventID, categoryID uuid.UUID, quantity int) error
}

type inventoryLedger struct {
	eventRepo repository.EventRepository
}

func NewInventoryLedger(eventRepo repository.EventRepository) InventoryLedger {
	return &inventoryLedger{eventRepo: eventRepo}
}

// Reserve locks the event row and then the category row (always in that
// order, so concurrent reservations cannot deadlock), checks both counters
// and increments both. A reservation that would overflow either counter
// fails with ErrCapacityExceeded and writes nothing.
func (l *inventoryLedger) Reserve(ctx context.Context, tx *gorm.DB, eventID, categoryID uuid.UUID, quantity int) (*models.Event, *models.TicketCategory, error) {
	event, err := l.eventRepo.FindByIDForUpdate(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrEventNotFound
		}
		return nil, nil, err
	}
	if event.Status != models.EventActive {
		return nil, nil, ErrEventNotOnSale
	}

	category, err := l.eventRepo.FindCategoryByIDForUpdate(ctx, tx, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCategoryNotFound
		}
		return nil, nil, err
	}
	if category.EventID != eventID {
		return nil, nil, ErrCategoryNotFound
	}
	if !category.IsActive {
		return nil, nil, ErrCategoryInactive
	}

	if category.SoldQuantity+quantity > category.MaxQuantity {
		return nil, nil, ErrCapacityExceeded
	}
	if event.SoldTickets+quantity > event.MaxCapacity {
		return nil, nil, ErrCapacityExceeded
	}

	if err := l.eventRepo.AddSoldQuantity(ctx, tx, categoryID, quantity); err != nil {
		return nil, nil, err
	}
	if err := l.eventRepo.AddSoldTickets(ctx, tx, eventID, quantity); err != nil {
		return nil, nil, err
	}
	return event, category, nil
}

// Release returns held capacity. Idempotence is enforced by the callers: a
// release only ever happens alongside a guarded ticket status transition, so
// the same reservation cannot be released twice.
func (l *inventoryLedger) Release(ctx context.Context, tx *gorm.DB, eventID, categoryID uuid.UUID, quantity int) error {
	// Lock in the same order as Reserve.
	if _, err := l.eventRepo.FindByIDForUpdate(ctx, tx, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if _, err := l.eventRepo.FindCategoryByIDForUpdate(ctx, tx, categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}

	if err := l.eventRepo.AddSoldQuantity(ctx, tx, categoryID, -quantity); err != nil {
		return err
	}
	return l.eventRepo.AddSoldTickets(ctx, tx, eventID, -quantity)
}
