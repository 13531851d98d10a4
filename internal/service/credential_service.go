package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CredentialClaims is what a gate scanner presents back to the server. The
// payload binds the ticket to its event and category so a credential cannot
// be replayed at a different event's gate, and carries a random code that
// must match the one stored on the ticket row.
type CredentialClaims struct {
	TicketID   uuid.UUID
	EventID    uuid.UUID
	CategoryID uuid.UUID
	Code       string
}

type CredentialIssuer interface {
	// Issue mints a fresh QR credential onto the ticket. The caller persists
	// the ticket in the same transaction that activates it.
	Issue(ticket *models.Ticket) error
	Verify(payload string) (*CredentialClaims, error)
}

type credentialIssuer struct {
	secret []byte
}

func NewCredentialIssuer(secret string) CredentialIssuer {
	return &credentialIssuer{secret: []byte(secret)}
}

func (i *credentialIssuer) Issue(ticket *models.Ticket) error {
	code, err := generateCode(16)
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}

	claims := jwt.MapClaims{
		"ticket_id":   ticket.ID.String(),
		"event_id":    ticket.EventID.String(),
		"category_id": ticket.CategoryID.String(),
		"code":        code,
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	payload, err := token.SignedString(i.secret)
	if err != nil {
		return fmt.Errorf("sign qr payload: %w", err)
	}

	ticket.QRCode = &code
	ticket.QRCodeData = &payload
	return nil
}

func (i *credentialIssuer) Verify(payload string) (*CredentialClaims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(payload, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownCredential, err)
	}
	if !token.Valid {
		return nil, ErrUnknownCredential
	}

	ticketID, err := claimUUID(claims, "ticket_id")
	if err != nil {
		return nil, err
	}
	eventID, err := claimUUID(claims, "event_id")
	if err != nil {
		return nil, err
	}
	categoryID, err := claimUUID(claims, "category_id")
	if err != nil {
		return nil, err
	}
	code, _ := claims["code"].(string)
	if code == "" {
		return nil, ErrUnknownCredential
	}

	return &CredentialClaims{
		TicketID:   ticketID,
		EventID:    eventID,
		CategoryID: categoryID,
		Code:       code,
	}, nil
}

func claimUUID(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	raw, _ := claims[key].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnknownCredential
	}
	return id, nil
}

func generateCode(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
