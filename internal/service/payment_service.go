package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/repository"
	"github.com/Eursukkul/ticketgate/monitoring"
	"github.com/Eursukkul/ticketgate/pkg/logger"
	"github.com/Eursukkul/ticketgate/pkg/rabbitmq"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GatewayOutcome string

const (
	OutcomeApproved GatewayOutcome = "APPROVED"
	OutcomeRejected GatewayOutcome = "REJECTED"
)

// ReconcileResult is always returned without error for resolvable callbacks:
// the gateway must receive an acknowledgment even for duplicates, late
// arrivals and unknown transaction ids.
type ReconcileResult struct {
	Payment   *models.Payment
	Ticket    *models.Ticket
	Duplicate bool
	Unknown   bool
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, externalID string, outcome GatewayOutcome, gatewayRef string) (*ReconcileResult, error)
	Refund(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

type paymentReconciler struct {
	paymentRepo repository.PaymentRepository
	ticketRepo  repository.TicketRepository
	inventory   InventoryLedger
	issuer      CredentialIssuer
	publisher   Publisher
	log         logger.Logger
}

func NewPaymentReconciler(
	paymentRepo repository.PaymentRepository,
	ticketRepo repository.TicketRepository,
	inventory InventoryLedger,
	issuer CredentialIssuer,
	publisher Publisher,
	log logger.Logger,
) PaymentReconciler {
	return &paymentReconciler{
		paymentRepo: paymentRepo,
		ticketRepo:  ticketRepo,
		inventory:   inventory,
		issuer:      issuer,
		publisher:   publisher,
		log:         log,
	}
}

// Reconcile applies a gateway outcome exactly once: the first delivery
// commits the terminal state and its side effects, every later delivery of
// the same id observes a resolved payment and becomes a no-op. Locks are
// taken ticket first, then payment, the same order Cancel and the expiry
// sweep use, so a callback racing either of them cannot deadlock. The
// unlocked read only resolves the transaction id to its ticket; the payment
// status is re-checked under the lock.
func (r *paymentReconciler) Reconcile(ctx context.Context, externalID string, outcome GatewayOutcome, gatewayRef string) (*ReconcileResult, error) {
	if outcome != OutcomeApproved && outcome != OutcomeRejected {
		return nil, fmt.Errorf("unsupported gateway outcome %q", outcome)
	}

	result := &ReconcileResult{}

	err := r.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		peek, err := r.paymentRepo.FindByExternalID(ctx, tx, externalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Unknown = true
				return nil
			}
			return err
		}

		ticket, err := r.ticketRepo.FindByIDForUpdate(ctx, tx, peek.TicketID)
		if err != nil {
			return err
		}
		result.Ticket = ticket

		payment, err := r.paymentRepo.FindByExternalIDForUpdate(ctx, tx, externalID)
		if err != nil {
			return err
		}
		result.Payment = payment

		if payment.Status.Resolved() {
			result.Duplicate = true
			return nil
		}

		now := time.Now()
		payment.GatewayReference = gatewayRef
		payment.ResolvedAt = &now

		if outcome == OutcomeRejected {
			payment.Status = models.PaymentRejected
			if err := r.paymentRepo.Save(ctx, tx, payment); err != nil {
				return err
			}

			ok, err := r.ticketRepo.UpdateStatusFrom(ctx, tx, ticket.ID, models.TicketPending, map[string]any{
				"status": models.TicketCancelled,
			})
			if err != nil {
				return err
			}
			if ok {
				if err := r.inventory.Release(ctx, tx, ticket.EventID, ticket.CategoryID, 1); err != nil {
					return err
				}
				ticket.Status = models.TicketCancelled
			}
			return nil
		}

		// Approval for a ticket no longer PENDING means the local TTL beat
		// the gateway. The money side stays rejected and the callback is
		// acknowledged as late; reimbursement is an upstream concern.
		if ticket.Status != models.TicketPending {
			payment.Status = models.PaymentRejected
			result.Duplicate = true
			return r.paymentRepo.Save(ctx, tx, payment)
		}

		payment.Status = models.PaymentApproved
		if err := r.paymentRepo.Save(ctx, tx, payment); err != nil {
			return err
		}

		if err := r.issuer.Issue(ticket); err != nil {
			return err
		}
		ok, err := r.ticketRepo.UpdateStatusFrom(ctx, tx, ticket.ID, models.TicketPending, map[string]any{
			"status":       models.TicketActive,
			"activated_at": now,
			"qr_code":      *ticket.QRCode,
			"qr_code_data": *ticket.QRCodeData,
		})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		ticket.Status = models.TicketActive
		ticket.ActivatedAt = &now
		return nil
	})
	if err != nil {
		monitoring.TrackPaymentCallback("error")
		return nil, err
	}

	switch {
	case result.Unknown:
		monitoring.TrackPaymentCallback("unknown")
		r.log.Warnf("payment callback for unknown transaction %s discarded", externalID)
	case result.Duplicate:
		monitoring.TrackPaymentCallback("duplicate")
		r.log.Warnf("duplicate or late payment callback for transaction %s discarded", externalID)
	default:
		monitoring.TrackPaymentCallback(string(outcome))
		if outcome == OutcomeApproved && r.publisher != nil {
			_ = r.publisher.Publish(rabbitmq.KeyTicketActivated, result.Ticket)
		}
	}

	return result, nil
}

// Refund voids an APPROVED payment and cancels its ticket as one unit.
// Ticket before payment, like everywhere else that locks both.
func (r *paymentReconciler) Refund(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var refunded *models.Payment
	var ticket *models.Ticket

	peek, err := r.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	err = r.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := r.ticketRepo.FindByIDForUpdate(ctx, tx, peek.TicketID)
		if err != nil {
			return err
		}

		payment, err := r.paymentRepo.FindByIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentApproved {
			return ErrPaymentNotApproved
		}

		ok, err := r.ticketRepo.UpdateStatusFrom(ctx, tx, t.ID, models.TicketActive, map[string]any{
			"status": models.TicketCancelled,
		})
		if err != nil {
			return err
		}
		if !ok {
			// USED or TRANSFERRED tickets are past the point of refunding.
			return ErrInvalidTransition
		}

		now := time.Now()
		payment.Status = models.PaymentRefunded
		payment.ResolvedAt = &now
		if err := r.paymentRepo.Save(ctx, tx, payment); err != nil {
			return err
		}

		if err := r.inventory.Release(ctx, tx, t.EventID, t.CategoryID, 1); err != nil {
			return err
		}

		t.Status = models.TicketCancelled
		refunded = payment
		ticket = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if r.publisher != nil {
		_ = r.publisher.Publish(rabbitmq.KeyTicketCancelled, ticket)
	}
	return refunded, nil
}

func (r *paymentReconciler) Get(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := r.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}
