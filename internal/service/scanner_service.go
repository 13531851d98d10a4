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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RedemptionCode string

const (
	RedemptionValid       RedemptionCode = "VALID"
	RedemptionAlreadyUsed RedemptionCode = "ALREADY_USED"
	RedemptionInvalid     RedemptionCode = "INVALID"
	RedemptionUnknown     RedemptionCode = "UNKNOWN_CREDENTIAL"
)

// RedemptionResult tells the field operator why entry was granted or denied.
// "This ticket is used" and "this ticket is invalid" call for different
// responses at the gate, so they are never collapsed into one code.
type RedemptionResult struct {
	Code       RedemptionCode
	Ticket     *models.Ticket
	HolderName string
	RedeemedAt *time.Time
}

// RegisteredScanner carries the plaintext secret exactly once, right after
// registration or rotation. Only the bcrypt hash is stored.
type RegisteredScanner struct {
	Scanner *models.Scanner
	Secret  string
}

type ScannerGateway interface {
	Authenticate(ctx context.Context, apiKey, secret string) (*models.Scanner, error)
	Redeem(ctx context.Context, scanner *models.Scanner, payload, ip string) (*RedemptionResult, error)
	Register(ctx context.Context, name, location string) (*RegisteredScanner, error)
	RotateSecret(ctx context.Context, id uuid.UUID) (*RegisteredScanner, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ScannerStatus) (*models.Scanner, error)
}

type scannerGateway struct {
	scannerRepo repository.ScannerRepository
	ticketRepo  repository.TicketRepository
	issuer      CredentialIssuer
	publisher   Publisher
	log         logger.Logger
}

func NewScannerGateway(
	scannerRepo repository.ScannerRepository,
	ticketRepo repository.TicketRepository,
	issuer CredentialIssuer,
	publisher Publisher,
	log logger.Logger,
) ScannerGateway {
	return &scannerGateway{
		scannerRepo: scannerRepo,
		ticketRepo:  ticketRepo,
		issuer:      issuer,
		publisher:   publisher,
		log:         log,
	}
}

func (g *scannerGateway) Authenticate(ctx context.Context, apiKey, secret string) (*models.Scanner, error) {
	scanner, err := g.scannerRepo.FindByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidScannerCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(scanner.SecretHash), []byte(secret)); err != nil {
		return nil, ErrInvalidScannerCredentials
	}
	if scanner.Status != models.ScannerActive {
		return nil, ErrScannerInactive
	}

	return scanner, nil
}

// Redeem consumes a ticket's validity. The status flip is a guarded update
// on a locked row: when two scanners race on the same ticket, exactly one
// wins and the loser gets ALREADY_USED.
func (g *scannerGateway) Redeem(ctx context.Context, scanner *models.Scanner, payload, ip string) (*RedemptionResult, error) {
	claims, err := g.issuer.Verify(payload)
	if err != nil {
		monitoring.TrackRedemption(string(RedemptionUnknown))
		return &RedemptionResult{Code: RedemptionUnknown}, nil
	}

	result := &RedemptionResult{}

	err = g.ticketRepo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ticket, err := g.ticketRepo.FindByIDForUpdate(ctx, tx, claims.TicketID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result.Code = RedemptionUnknown
				return nil
			}
			return err
		}

		// The payload must resolve to this exact credential at this exact
		// event. A signed payload replayed at another event's gate, or one
		// whose stored code no longer matches, does not resolve.
		if ticket.QRCode == nil || *ticket.QRCode != claims.Code || ticket.EventID != claims.EventID {
			result.Code = RedemptionUnknown
			return nil
		}

		result.Ticket = ticket
		result.HolderName = ticket.HolderName
		result.RedeemedAt = ticket.UsedAt

		switch ticket.Status {
		case models.TicketActive:
			now := time.Now()
			ok, err := g.ticketRepo.UpdateStatusFrom(ctx, tx, ticket.ID, models.TicketActive, map[string]any{
				"status":             models.TicketUsed,
				"used_at":            now,
				"used_by_scanner_id": scanner.ID,
				"used_at_location":   scanner.Location,
			})
			if err != nil {
				return err
			}
			if !ok {
				result.Code = RedemptionAlreadyUsed
				return nil
			}
			ticket.Status = models.TicketUsed
			ticket.UsedAt = &now
			result.Code = RedemptionValid
			result.RedeemedAt = &now

			return g.scannerRepo.TouchUsage(ctx, tx, scanner.ID, now, ip)
		case models.TicketUsed:
			result.Code = RedemptionAlreadyUsed
			return nil
		default:
			// PENDING, CANCELLED or a superseded TRANSFERRED record.
			result.Code = RedemptionInvalid
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackRedemption(string(result.Code))
	if result.Code == RedemptionValid {
		g.log.Infof("ticket %s redeemed by scanner %s", result.Ticket.ID, scanner.Name)
		if g.publisher != nil {
			_ = g.publisher.Publish(rabbitmq.KeyTicketRedeemed, result.Ticket)
		}
	}
	return result, nil
}

func (g *scannerGateway) Register(ctx context.Context, name, location string) (*RegisteredScanner, error) {
	apiKey, err := generateCode(16)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	secret, hash, err := newScannerSecret()
	if err != nil {
		return nil, err
	}

	scanner := &models.Scanner{
		Name:       name,
		APIKey:     apiKey,
		SecretHash: hash,
		Location:   location,
		Role:       models.RoleValidator,
		Status:     models.ScannerActive,
	}
	if err := g.scannerRepo.Create(ctx, scanner); err != nil {
		return nil, err
	}

	g.log.Infof("registered scanner %s at %q", scanner.Name, scanner.Location)
	return &RegisteredScanner{Scanner: scanner, Secret: secret}, nil
}

// RotateSecret replaces the device secret by admin action; previously issued
// credentials stop authenticating immediately.
func (g *scannerGateway) RotateSecret(ctx context.Context, id uuid.UUID) (*RegisteredScanner, error) {
	scanner, err := g.scannerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScannerNotFound
		}
		return nil, err
	}

	secret, hash, err := newScannerSecret()
	if err != nil {
		return nil, err
	}
	scanner.SecretHash = hash
	if err := g.scannerRepo.Save(ctx, scanner); err != nil {
		return nil, err
	}

	g.log.Infof("rotated secret for scanner %s", scanner.Name)
	return &RegisteredScanner{Scanner: scanner, Secret: secret}, nil
}

func (g *scannerGateway) SetStatus(ctx context.Context, id uuid.UUID, status models.ScannerStatus) (*models.Scanner, error) {
	scanner, err := g.scannerRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScannerNotFound
		}
		return nil, err
	}

	scanner.Status = status
	if err := g.scannerRepo.Save(ctx, scanner); err != nil {
		return nil, err
	}
	return scanner, nil
}

func newScannerSecret() (secret, hash string, err error) {
	secret, err = generateCode(24)
	if err != nil {
		return "", "", fmt.Errorf("generate secret: %w", err)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash secret: %w", err)
	}
	return secret, string(h), nil
}
