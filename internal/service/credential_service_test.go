package service

import (
	"strings"
	"testing"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTicket() *models.Ticket {
	return &models.Ticket{
		ID:         uuid.New(),
		EventID:    uuid.New(),
		CategoryID: uuid.New(),
		UserID:     uuid.New(),
		Status:     models.TicketPending,
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewCredentialIssuer("test-secret")
	ticket := newTestTicket()

	require.NoError(t, issuer.Issue(ticket))
	require.NotNil(t, ticket.QRCode)
	require.NotNil(t, ticket.QRCodeData)
	assert.Len(t, *ticket.QRCode, 32)

	claims, err := issuer.Verify(*ticket.QRCodeData)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, claims.TicketID)
	assert.Equal(t, ticket.EventID, claims.EventID)
	assert.Equal(t, ticket.CategoryID, claims.CategoryID)
	assert.Equal(t, *ticket.QRCode, claims.Code)
}

func TestIssueMintsUniqueCodes(t *testing.T) {
	issuer := NewCredentialIssuer("test-secret")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ticket := newTestTicket()
		require.NoError(t, issuer.Issue(ticket))
		assert.False(t, seen[*ticket.QRCode], "duplicate code minted")
		seen[*ticket.QRCode] = true
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	issuer := NewCredentialIssuer("test-secret")
	ticket := newTestTicket()
	require.NoError(t, issuer.Issue(ticket))

	// Flip a character in the claims segment
	parts := strings.Split(*ticket.QRCodeData, ".")
	require.Len(t, parts, 3)
	body := []byte(parts[1])
	if body[0] == 'A' {
		body[0] = 'B'
	} else {
		body[0] = 'A'
	}
	tampered := parts[0] + "." + string(body) + "." + parts[2]

	_, err := issuer.Verify(tampered)
	assert.ErrorIs(t, err, ErrUnknownCredential)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewCredentialIssuer("test-secret")
	forger := NewCredentialIssuer("attacker-secret")

	ticket := newTestTicket()
	require.NoError(t, forger.Issue(ticket))

	_, err := issuer.Verify(*ticket.QRCodeData)
	assert.ErrorIs(t, err, ErrUnknownCredential)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	issuer := NewCredentialIssuer("test-secret")

	for _, payload := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.Verify(payload)
		assert.ErrorIs(t, err, ErrUnknownCredential, "payload %q", payload)
	}
}
