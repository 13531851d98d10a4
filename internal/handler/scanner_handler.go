package handler

import (
	"net/http"

	"github.com/Eursukkul/ticketgate/internal/dto"
	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	headerAPIKey    = "X-Api-Key"
	headerAPISecret = "X-Api-Secret"
)

type ScannerHandler struct {
	svc service.ScannerGateway
}

func NewScannerHandler(svc service.ScannerGateway) *ScannerHandler {
	return &ScannerHandler{svc: svc}
}

func (h *ScannerHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/v1/scan", h.Scan)

	scanners := e.Group("/api/v1/scanners")
	scanners.POST("", h.Register)
	scanners.POST("/:id/rotate-secret", h.RotateSecret)
	scanners.POST("/:id/status", h.SetStatus)
}

// Scan authenticates the device from transport headers and submits the
// scanned payload. Resolvable tickets always answer 200 with a result code;
// only device authentication failures are HTTP errors, so the gate app can
// tell "fix the device" apart from "deny this ticket".
func (h *ScannerHandler) Scan(c echo.Context) error {
	apiKey := c.Request().Header.Get(headerAPIKey)
	secret := c.Request().Header.Get(headerAPISecret)
	if apiKey == "" || secret == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing scanner credentials")
	}

	scanner, err := h.svc.Authenticate(c.Request().Context(), apiKey, secret)
	if err != nil {
		return err
	}

	var req dto.ScanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.QRData == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "qr_data is required")
	}

	result, err := h.svc.Redeem(c.Request().Context(), scanner, req.QRData, c.RealIP())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToScanResponse(result))
}

func (h *ScannerHandler) Register(c echo.Context) error {
	var req dto.RegisterScannerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	registered, err := h.svc.Register(c.Request().Context(), req.Name, req.Location)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.ToRegisteredScannerResponse(registered))
}

func (h *ScannerHandler) RotateSecret(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid scanner id")
	}

	registered, err := h.svc.RotateSecret(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToRegisteredScannerResponse(registered))
}

func (h *ScannerHandler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid scanner id")
	}

	var req dto.ScannerStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	status := models.ScannerStatus(req.Status)
	if status != models.ScannerActive && status != models.ScannerInactive {
		return echo.NewHTTPError(http.StatusBadRequest, "status must be ACTIVE or INACTIVE")
	}

	scanner, err := h.svc.SetStatus(c.Request().Context(), id, status)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, scanner)
}
