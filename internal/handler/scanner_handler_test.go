package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Eursukkul/ticketgate/internal/dto"
	"github.com/Eursukkul/ticketgate/internal/middleware"
	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock ScannerGateway ---

type mockScannerGateway struct {
	authFn   func(ctx context.Context, apiKey, secret string) (*models.Scanner, error)
	redeemFn func(ctx context.Context, scanner *models.Scanner, payload, ip string) (*service.RedemptionResult, error)
}

func (m *mockScannerGateway) Authenticate(ctx context.Context, apiKey, secret string) (*models.Scanner, error) {
	return m.authFn(ctx, apiKey, secret)
}
func (m *mockScannerGateway) Redeem(ctx context.Context, scanner *models.Scanner, payload, ip string) (*service.RedemptionResult, error) {
	return m.redeemFn(ctx, scanner, payload, ip)
}
func (m *mockScannerGateway) Register(ctx context.Context, name, location string) (*service.RegisteredScanner, error) {
	return nil, nil
}
func (m *mockScannerGateway) RotateSecret(ctx context.Context, id uuid.UUID) (*service.RegisteredScanner, error) {
	return nil, nil
}
func (m *mockScannerGateway) SetStatus(ctx context.Context, id uuid.UUID, status models.ScannerStatus) (*models.Scanner, error) {
	return nil, nil
}

func newScanContext(e *echo.Echo, apiKey, secret, qrData string) (echo.Context, *httptest.ResponseRecorder) {
	raw, _ := json.Marshal(dto.ScanRequest{QRData: qrData})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(string(raw)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if apiKey != "" {
		req.Header.Set(headerAPIKey, apiKey)
	}
	if secret != "" {
		req.Header.Set(headerAPISecret, secret)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestScanValid(t *testing.T) {
	e := echo.New()
	ticketID := uuid.New()
	svc := &mockScannerGateway{
		authFn: func(ctx context.Context, apiKey, secret string) (*models.Scanner, error) {
			return &models.Scanner{ID: uuid.New(), Name: "gate-1", Status: models.ScannerActive}, nil
		},
		redeemFn: func(ctx context.Context, scanner *models.Scanner, payload, ip string) (*service.RedemptionResult, error) {
			return &service.RedemptionResult{
				Code:       service.RedemptionValid,
				Ticket:     &models.Ticket{ID: ticketID, Status: models.TicketUsed},
				HolderName: "Jordan",
			}, nil
		},
	}
	h := NewScannerHandler(svc)

	c, rec := newScanContext(e, "key", "secret", "payload")
	require.NoError(t, h.Scan(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, service.RedemptionValid, resp.Result)
	require.NotNil(t, resp.TicketID)
	assert.Equal(t, ticketID, *resp.TicketID)
	assert.Equal(t, "Jordan", resp.HolderName)
}

func TestScanResultCodesAre200(t *testing.T) {
	// ALREADY_USED, INVALID and UNKNOWN_CREDENTIAL are operator signals,
	// not transport errors.
	for _, code := range []service.RedemptionCode{
		service.RedemptionAlreadyUsed,
		service.RedemptionInvalid,
		service.RedemptionUnknown,
	} {
		t.Run(string(code), func(t *testing.T) {
			e := echo.New()
			svc := &mockScannerGateway{
				authFn: func(ctx context.Context, apiKey, secret string) (*models.Scanner, error) {
					return &models.Scanner{Status: models.ScannerActive}, nil
				},
				redeemFn: func(ctx context.Context, scanner *models.Scanner, payload, ip string) (*service.RedemptionResult, error) {
					return &service.RedemptionResult{Code: code}, nil
				},
			}
			h := NewScannerHandler(svc)

			c, rec := newScanContext(e, "key", "secret", "payload")
			require.NoError(t, h.Scan(c))
			assert.Equal(t, http.StatusOK, rec.Code)

			var resp dto.ScanResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, code, resp.Result)
		})
	}
}

func TestScanInvalidCredentials(t *testing.T) {
	e := echo.New()
	svc := &mockScannerGateway{
		authFn: func(ctx context.Context, apiKey, secret string) (*models.Scanner, error) {
			return nil, service.ErrInvalidScannerCredentials
		},
	}
	h := NewScannerHandler(svc)

	c, rec := newScanContext(e, "key", "wrong", "payload")
	err := h.Scan(c)
	require.Error(t, err)
	middleware.ErrorHandler(err, c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScanInactiveScanner(t *testing.T) {
	e := echo.New()
	svc := &mockScannerGateway{
		authFn: func(ctx context.Context, apiKey, secret string) (*models.Scanner, error) {
			return nil, service.ErrScannerInactive
		},
	}
	h := NewScannerHandler(svc)

	c, rec := newScanContext(e, "key", "secret", "payload")
	err := h.Scan(c)
	require.Error(t, err)
	middleware.ErrorHandler(err, c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestScanMissingHeaders(t *testing.T) {
	e := echo.New()
	h := NewScannerHandler(&mockScannerGateway{})

	c, rec := newScanContext(e, "", "", "payload")
	err := h.Scan(c)
	require.Error(t, err)
	middleware.ErrorHandler(err, c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
