package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/repository"
	"github.com/Eursukkul/ticketgate/pkg/rabbitmq"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventService interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	AddCategory(ctx context.Context, category *models.TicketCategory) error
}

type eventService struct {
	repo      repository.EventRepository
	publisher Publisher
}

func NewEventService(repo repository.EventRepository, publisher Publisher) EventService {
	return &eventService{repo: repo, publisher: publisher}
}

func (s *eventService) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := s.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(rabbitmq.KeyEventCreated, event)
	}

	return nil
}

func (s *eventService) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.repo.FindAll(ctx)
}

func (s *eventService) AddCategory(ctx context.Context, category *models.TicketCategory) error {
	if _, err := s.repo.FindByID(ctx, category.EventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	return s.repo.CreateCategory(ctx, category)
}
