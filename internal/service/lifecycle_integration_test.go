//go:build integration

package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/pkg/rabbitmq"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func purchase(t *testing.T, env *testEnv, event *models.Event, categoryIdx int) *models.Ticket {
	t.Helper()

	ticket, err := env.tickets.Purchase(context.Background(), PurchaseParams{
		EventID:    event.ID,
		CategoryID: event.Categories[categoryIdx].ID,
		UserID:     uuid.New(),
		Method:     "CREDIT_CARD",
		HolderName: "Somchai J.",
	})
	require.NoError(t, err)
	return ticket
}

func approve(t *testing.T, env *testEnv, ticket *models.Ticket) *models.Ticket {
	t.Helper()

	res, err := env.payments.Reconcile(context.Background(), ticket.Payment.ExternalTransactionID, OutcomeApproved, "gw-ref-1")
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.Equal(t, models.TicketActive, res.Ticket.Status)
	require.NotNil(t, res.Ticket.QRCodeData)
	return res.Ticket
}

func TestConcurrentPurchaseRespectsCapacity(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 100, 50)

	const buyers = 60
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, exceeded := 0, 0

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.tickets.Purchase(context.Background(), PurchaseParams{
				EventID:    event.ID,
				CategoryID: event.Categories[0].ID,
				UserID:     uuid.New(),
				Method:     "CREDIT_CARD",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrCapacityExceeded):
				exceeded++
			default:
				t.Errorf("unexpected purchase error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	assert.Equal(t, 10, exceeded)

	sold, catSold := counters(t, event)
	assert.Equal(t, 50, sold)
	assert.Equal(t, 50, catSold[0])

	var count int64
	require.NoError(t, testDB.Model(&models.Ticket{}).Where("event_id = ?", event.ID).Count(&count).Error)
	assert.EqualValues(t, 50, count)
}

func TestEventCapacityBindsAcrossCategories(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	// Two categories of 5 each, but the event only holds 5 in total.
	event := createTestEvent(t, 5, 5, 5)

	for i := 0; i < 3; i++ {
		purchase(t, env, event, 0)
	}
	for i := 0; i < 2; i++ {
		purchase(t, env, event, 1)
	}

	_, err := env.tickets.Purchase(context.Background(), PurchaseParams{
		EventID:    event.ID,
		CategoryID: event.Categories[1].ID,
		UserID:     uuid.New(),
		Method:     "PIX",
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	sold, catSold := counters(t, event)
	assert.Equal(t, 5, sold)
	assert.Equal(t, 3, catSold[0])
	assert.Equal(t, 2, catSold[1])
}

func TestLastSeatHasOneWinner(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.tickets.Purchase(context.Background(), PurchaseParams{
				EventID:    event.ID,
				CategoryID: event.Categories[0].ID,
				UserID:     uuid.New(),
				Method:     "CREDIT_CARD",
			})
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if errors.Is(err, ErrCapacityExceeded) {
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)
}

func TestDuplicateCallbackActivatesOnce(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 10)
	ticket := purchase(t, env, event, 0)

	externalID := ticket.Payment.ExternalTransactionID

	const deliveries = 5
	var wg sync.WaitGroup
	results := make([]*ReconcileResult, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.payments.Reconcile(context.Background(), externalID, OutcomeApproved, "gw-ref-dup")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	applied := 0
	for _, res := range results {
		require.NotNil(t, res)
		if !res.Duplicate {
			applied++
		}
	}
	assert.Equal(t, 1, applied)

	var got models.Ticket
	require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
	assert.Equal(t, models.TicketActive, got.Status)
	require.NotNil(t, got.QRCode)

	// Every duplicate observed the same credential; it was minted once.
	for _, res := range results {
		if res.Ticket != nil && res.Ticket.QRCode != nil {
			assert.Equal(t, *got.QRCode, *res.Ticket.QRCode)
		}
	}
}

func TestRejectedCallbackReleasesCapacity(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 10)
	ticket := purchase(t, env, event, 0)

	res, err := env.payments.Reconcile(context.Background(), ticket.Payment.ExternalTransactionID, OutcomeRejected, "gw-ref-rej")
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	assert.Equal(t, models.TicketCancelled, res.Ticket.Status)
	assert.Equal(t, models.PaymentRejected, res.Payment.Status)

	sold, catSold := counters(t, event)
	assert.Equal(t, 0, sold)
	assert.Equal(t, 0, catSold[0])
}

func TestUnknownCallbackIsAcknowledged(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)

	res, err := env.payments.Reconcile(context.Background(), uuid.NewString(), OutcomeApproved, "gw-ref-x")
	require.NoError(t, err)
	assert.True(t, res.Unknown)
}

func TestConcurrentRedemptionHasOneWinner(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 10)
	ticket := approve(t, env, purchase(t, env, event, 0))

	reg, err := env.scanners.Register(context.Background(), "gate-a", "north entrance")
	require.NoError(t, err)
	scanner, err := env.scanners.Authenticate(context.Background(), reg.Scanner.APIKey, reg.Secret)
	require.NoError(t, err)

	const scans = 10
	var wg sync.WaitGroup
	results := make([]*RedemptionResult, scans)
	for i := 0; i < scans; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.scanners.Redeem(context.Background(), scanner, *ticket.QRCodeData, "10.0.0.7")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	valid, used := 0, 0
	for _, res := range results {
		require.NotNil(t, res)
		switch res.Code {
		case RedemptionValid:
			valid++
		case RedemptionAlreadyUsed:
			used++
		default:
			t.Errorf("unexpected redemption code %s", res.Code)
		}
	}
	assert.Equal(t, 1, valid)
	assert.Equal(t, scans-1, used)

	var got models.Ticket
	require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
	assert.Equal(t, models.TicketUsed, got.Status)
	require.NotNil(t, got.UsedByScannerID)
	assert.Equal(t, scanner.ID, *got.UsedByScannerID)
}

func TestCancelReleasesAndIsIdempotent(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 10)
	ticket := approve(t, env, purchase(t, env, event, 0))

	cancelled, err := env.tickets.Cancel(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketCancelled, cancelled.Status)

	var payment models.Payment
	require.NoError(t, testDB.First(&payment, "ticket_id = ?", ticket.ID).Error)
	assert.Equal(t, models.PaymentRefunded, payment.Status)

	sold, catSold := counters(t, event)
	assert.Equal(t, 0, sold)
	assert.Equal(t, 0, catSold[0])

	// Second cancel is a no-op: no second release, no second event.
	_, err = env.tickets.Cancel(context.Background(), ticket.ID)
	require.NoError(t, err)
	sold, catSold = counters(t, event)
	assert.Equal(t, 0, sold)
	assert.Equal(t, 0, catSold[0])
	assert.Equal(t, 1, env.published.count(rabbitmq.KeyTicketCancelled))
}

// Cancel and an approval callback target the same ticket and payment rows
// from opposite entry points. Both paths lock ticket first, then payment;
// the loop shakes out orderings that would deadlock if they ever diverged.
func TestCancelAndCallbackRaceIsDeadlockFree(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 100, 100)

	for i := 0; i < 20; i++ {
		ticket := purchase(t, env, event, 0)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.tickets.Cancel(context.Background(), ticket.ID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.payments.Reconcile(context.Background(), ticket.Payment.ExternalTransactionID, OutcomeApproved, "gw-ref-cc")
			assert.NoError(t, err)
		}()
		wg.Wait()

		// Whichever side won, the cancel is final and the money side is
		// terminal: REJECTED if the cancel beat the approval, REFUNDED if
		// the approval landed first.
		var got models.Ticket
		require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
		assert.Equal(t, models.TicketCancelled, got.Status)

		var payment models.Payment
		require.NoError(t, testDB.First(&payment, "ticket_id = ?", ticket.ID).Error)
		assert.Contains(t, []models.PaymentStatus{models.PaymentRejected, models.PaymentRefunded}, payment.Status)
	}

	sold, catSold := counters(t, event)
	assert.Equal(t, 0, sold)
	assert.Equal(t, 0, catSold[0])
}

func TestTransferInvalidatesOldCredential(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 10)
	ticket := approve(t, env, purchase(t, env, event, 0))
	oldPayload := *ticket.QRCodeData

	newTicket, err := env.tickets.Transfer(context.Background(), ticket.ID, TransferParams{
		NewUserID:  uuid.New(),
		HolderName: "Nok S.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TicketActive, newTicket.Status)
	assert.NotEqual(t, ticket.ID, newTicket.ID)
	require.NotNil(t, newTicket.QRCodeData)
	assert.NotEqual(t, oldPayload, *newTicket.QRCodeData)

	// Transfer moves the seat, it does not free it.
	sold, _ := counters(t, event)
	assert.Equal(t, 1, sold)

	reg, err := env.scanners.Register(context.Background(), "gate-b", "south entrance")
	require.NoError(t, err)
	scanner, err := env.scanners.Authenticate(context.Background(), reg.Scanner.APIKey, reg.Secret)
	require.NoError(t, err)

	oldRes, err := env.scanners.Redeem(context.Background(), scanner, oldPayload, "10.0.0.8")
	require.NoError(t, err)
	assert.Equal(t, RedemptionInvalid, oldRes.Code)

	newRes, err := env.scanners.Redeem(context.Background(), scanner, *newTicket.QRCodeData, "10.0.0.8")
	require.NoError(t, err)
	assert.Equal(t, RedemptionValid, newRes.Code)
}

func TestExpirySweepCancelsAndReleases(t *testing.T) {
	cleanTables()
	env := newTestEnv(50 * time.Millisecond)
	event := createTestEvent(t, 10, 10)
	ticket := purchase(t, env, event, 0)

	time.Sleep(120 * time.Millisecond)

	swept, err := env.tickets.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var got models.Ticket
	require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
	assert.Equal(t, models.TicketCancelled, got.Status)

	var payment models.Payment
	require.NoError(t, testDB.First(&payment, "ticket_id = ?", ticket.ID).Error)
	assert.Equal(t, models.PaymentRejected, payment.Status)

	sold, catSold := counters(t, event)
	assert.Equal(t, 0, sold)
	assert.Equal(t, 0, catSold[0])

	// A late approval for the swept reservation is acknowledged but does
	// not resurrect the ticket.
	res, err := env.payments.Reconcile(context.Background(), ticket.Payment.ExternalTransactionID, OutcomeApproved, "gw-ref-late")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
	assert.Equal(t, models.TicketCancelled, got.Status)
}

func TestSweepAndCallbackRaceSettleOnce(t *testing.T) {
	cleanTables()
	env := newTestEnv(50 * time.Millisecond)
	event := createTestEvent(t, 10, 10)
	ticket := purchase(t, env, event, 0)

	time.Sleep(120 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := env.tickets.ExpireDue(context.Background())
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := env.payments.Reconcile(context.Background(), ticket.Payment.ExternalTransactionID, OutcomeApproved, "gw-ref-race")
		assert.NoError(t, err)
	}()
	wg.Wait()

	// Exactly one side won; either way the counters are consistent with
	// the final ticket state.
	var got models.Ticket
	require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
	sold, _ := counters(t, event)
	switch got.Status {
	case models.TicketCancelled:
		assert.Equal(t, 0, sold)
	case models.TicketActive:
		assert.Equal(t, 1, sold)
	default:
		t.Errorf("unexpected final status %s", got.Status)
	}
}

func TestInactiveScannerCannotRedeem(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)
	event := createTestEvent(t, 10, 10)
	ticket := approve(t, env, purchase(t, env, event, 0))

	reg, err := env.scanners.Register(context.Background(), "gate-c", "vip entrance")
	require.NoError(t, err)
	_, err = env.scanners.SetStatus(context.Background(), reg.Scanner.ID, models.ScannerInactive)
	require.NoError(t, err)

	_, err = env.scanners.Authenticate(context.Background(), reg.Scanner.APIKey, reg.Secret)
	assert.ErrorIs(t, err, ErrScannerInactive)

	var got models.Ticket
	require.NoError(t, testDB.First(&got, "id = ?", ticket.ID).Error)
	assert.Equal(t, models.TicketActive, got.Status)
}

func TestSecretRotationRevokesOldSecret(t *testing.T) {
	cleanTables()
	env := newTestEnv(15 * time.Minute)

	reg, err := env.scanners.Register(context.Background(), "gate-d", "staff entrance")
	require.NoError(t, err)

	rotated, err := env.scanners.RotateSecret(context.Background(), reg.Scanner.ID)
	require.NoError(t, err)
	assert.NotEqual(t, reg.Secret, rotated.Secret)

	_, err = env.scanners.Authenticate(context.Background(), reg.Scanner.APIKey, reg.Secret)
	assert.ErrorIs(t, err, ErrInvalidScannerCredentials)

	scanner, err := env.scanners.Authenticate(context.Background(), reg.Scanner.APIKey, rotated.Secret)
	require.NoError(t, err)
	assert.Equal(t, reg.Scanner.ID, scanner.ID)
}
