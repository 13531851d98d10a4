package service

import (
	"context"
	"errors"
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/repository"
	"github.com/Eursukkul/ticketgate/monitoring"
	"github.com/Eursukkul/ticketgate/pkg/logger"
	"github.com/Eursukkul/ticketgate/pkg/rabbitmq"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PurchaseParams struct {
	EventID        uuid.UUID
	CategoryID     uuid.UUID
	UserID         uuid.UUID
	Method         string
	HolderName     string
	HolderDocument string
}

type TransferParams struct {
	NewUserID      uuid.UUID
	HolderName     string
	HolderDocument string
}

type TicketService interface {
	Purchase(ctx context.Context, params PurchaseParams) (*models.Ticket, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	Transfer(ctx context.Context, id uuid.UUID, params TransferParams) (*models.Ticket, error)
	ExpireDue(ctx context.Context) (int, error)
	RunExpirySweeper(ctx context.Context, interval time.Duration)
}

type ticketService struct {
	ticketRepo  repository.TicketRepository
	paymentRepo repository.PaymentRepository
	inventory   InventoryLedger
	issuer      CredentialIssuer
	publisher   Publisher
	log         logger.Logger

	reservationTTL time.Duration
}

func NewTicketService(
	ticketRepo repository.TicketRepository,
	paymentRepo repository.PaymentRepository,
	inventory InventoryLedger,
	issuer CredentialIssuer,
	publisher Publisher,
	log logger.Logger,
	reservationTTL time.Duration,
) TicketService {
	return &ticketService{
		ticketRepo:     ticketRepo,
		paymentRepo:    paymentRepo,
		inventory:      inventory,
		issuer:         issuer,
		publisher:      publisher,
		log:            log,
		reservationTTL: reservationTTL,
	}
}

// Purchase reserves capacity and creates a PENDING ticket plus its PENDING
// payment in one transaction. The ticket holds no QR credential yet; that is
// minted only when the payment is approved.
func (s *ticketService) Purchase(ctx context.Context, params PurchaseParams) (*models.Ticket, error) {
	var ticket *models.Ticket

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, category, err := s.inventory.Reserve(ctx, tx, params.EventID, params.CategoryID, 1)
		if err != nil {
			return err
		}

		now := time.Now()
		ticket = &models.Ticket{
			EventID:    params.EventID,
			CategoryID: params.CategoryID,
			UserID:     params.UserID,

			EventTitle:    event.Name,
			EventStartsAt: event.StartsAt,
			EventVenue:    event.Venue,
			CategoryName:  category.Name,
			Price:         category.Price,

			Status:     models.TicketPending,
			ReservedAt: now,
			ExpiresAt:  now.Add(s.reservationTTL),

			HolderName:     params.HolderName,
			HolderDocument: params.HolderDocument,
		}
		if err := s.ticketRepo.Create(ctx, tx, ticket); err != nil {
			return err
		}

		payment := &models.Payment{
			TicketID:              ticket.ID,
			Amount:                category.Price,
			Method:                params.Method,
			Status:                models.PaymentPending,
			ExternalTransactionID: uuid.NewString(),
		}
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}

		ticket.Payment = payment
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			monitoring.TrackReservation("capacity_exceeded")
		} else {
			monitoring.TrackReservation("failed")
		}
		return nil, err
	}

	monitoring.TrackReservation("reserved")
	return ticket, nil
}

// Get sweeps the ticket first if its reservation has lapsed, so callers
// never observe a PENDING ticket past its TTL.
func (s *ticketService) Get(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	if ticket.Expired(time.Now()) {
		if _, err := s.expireOne(ctx, ticket.ID); err != nil {
			return nil, err
		}
		return s.ticketRepo.FindByID(ctx, id)
	}

	return ticket, nil
}

func (s *ticketService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Ticket, error) {
	return s.ticketRepo.FindByUserID(ctx, userID)
}

// Cancel voids a ticket and returns its capacity. Cancelling an already
// cancelled ticket is a no-op. APPROVED payments flip to REFUNDED in the
// same transaction; a second cancellation can therefore never double-refund.
func (s *ticketService) Cancel(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var result *models.Ticket
	cancelled := false

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTicketNotFound
			}
			return err
		}

		switch ticket.Status {
		case models.TicketCancelled:
			result = ticket
			return nil
		case models.TicketActive, models.TicketPending:
			// fall through
		default:
			return ErrInvalidTransition
		}

		from := ticket.Status
		ok, err := s.ticketRepo.UpdateStatusFrom(ctx, tx, ticket.ID, from, map[string]any{
			"status": models.TicketCancelled,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}

		payment, err := s.paymentRepo.FindByTicketIDForUpdate(ctx, tx, ticket.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if payment != nil {
			now := time.Now()
			switch payment.Status {
			case models.PaymentApproved:
				payment.Status = models.PaymentRefunded
				payment.ResolvedAt = &now
			case models.PaymentPending:
				payment.Status = models.PaymentRejected
				payment.ResolvedAt = &now
			}
			if err := s.paymentRepo.Save(ctx, tx, payment); err != nil {
				return err
			}
		}

		if err := s.inventory.Release(ctx, tx, ticket.EventID, ticket.CategoryID, 1); err != nil {
			return err
		}

		ticket.Status = models.TicketCancelled
		ticket.Payment = payment
		result = ticket
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The no-op path (already cancelled) must not emit a second event.
	if cancelled && s.publisher != nil {
		_ = s.publisher.Publish(rabbitmq.KeyTicketCancelled, result)
	}
	return result, nil
}

// Transfer hands an ACTIVE ticket to a new holder. The old record turns
// terminal TRANSFERRED and a fresh ACTIVE record with a new credential is
// created in the same transaction, so there is no window in which both QR
// payloads are redeemable.
func (s *ticketService) Transfer(ctx context.Context, id uuid.UUID, params TransferParams) (*models.Ticket, error) {
	var fresh *models.Ticket

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTicketNotFound
			}
			return err
		}
		if old.Status != models.TicketActive {
			return ErrTicketNotActive
		}

		now := time.Now()
		ok, err := s.ticketRepo.UpdateStatusFrom(ctx, tx, old.ID, models.TicketActive, map[string]any{
			"status":         models.TicketTransferred,
			"transferred_at": now,
			"transferred_to": params.NewUserID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrTicketNotActive
		}

		fresh = &models.Ticket{
			EventID:    old.EventID,
			CategoryID: old.CategoryID,
			UserID:     params.NewUserID,

			EventTitle:    old.EventTitle,
			EventStartsAt: old.EventStartsAt,
			EventVenue:    old.EventVenue,
			CategoryName:  old.CategoryName,
			Price:         old.Price,

			Status:      models.TicketActive,
			ReservedAt:  old.ReservedAt,
			ExpiresAt:   old.ExpiresAt,
			ActivatedAt: &now,

			HolderName:     params.HolderName,
			HolderDocument: params.HolderDocument,
		}
		fresh.ID = uuid.New()
		if err := s.issuer.Issue(fresh); err != nil {
			return err
		}
		return s.ticketRepo.Create(ctx, tx, fresh)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("ticket %s transferred to user %s as %s", id, params.NewUserID, fresh.ID)
	if s.publisher != nil {
		_ = s.publisher.Publish(rabbitmq.KeyTicketTransferred, fresh)
	}
	return fresh, nil
}

// ExpireDue cancels PENDING tickets past their TTL and releases their held
// capacity. Each ticket is swept in its own transaction; the PENDING guard
// makes the sweep safe against a payment callback landing at the same time.
func (s *ticketService) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.ticketRepo.FindExpiredPending(ctx, time.Now(), 100)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, ticket := range due {
		ok, err := s.expireOne(ctx, ticket.ID)
		if err != nil {
			s.log.Errorf("expire ticket %s: %v", ticket.ID, err)
			continue
		}
		if ok {
			swept++
			monitoring.TrackSweptReservation()
		}
	}
	return swept, nil
}

func (s *ticketService) expireOne(ctx context.Context, id uuid.UUID) (bool, error) {
	swept := false

	err := s.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := s.ticketRepo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if !ticket.Expired(time.Now()) {
			return nil
		}

		ok, err := s.ticketRepo.UpdateStatusFrom(ctx, tx, ticket.ID, models.TicketPending, map[string]any{
			"status": models.TicketCancelled,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		payment, err := s.paymentRepo.FindByTicketIDForUpdate(ctx, tx, ticket.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if payment != nil && payment.Status == models.PaymentPending {
			now := time.Now()
			payment.Status = models.PaymentRejected
			payment.ResolvedAt = &now
			if err := s.paymentRepo.Save(ctx, tx, payment); err != nil {
				return err
			}
		}

		if err := s.inventory.Release(ctx, tx, ticket.EventID, ticket.CategoryID, 1); err != nil {
			return err
		}
		swept = true
		return nil
	})

	return swept, err
}

func (s *ticketService) RunExpirySweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.ExpireDue(ctx)
			if err != nil {
				s.log.Errorf("expiry sweep: %v", err)
				continue
			}
			if swept > 0 {
				s.log.Infof("expiry sweep cancelled %d lapsed reservations", swept)
			}
		}
	}
}
