package handler

import (
	"net/http"

	"github.com/Eursukkul/ticketgate/internal/dto"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	svc service.PaymentReconciler
}

func NewPaymentHandler(svc service.PaymentReconciler) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	payments := e.Group("/api/v1/payments")
	payments.POST("/webhook", h.Webhook)
	payments.GET("/:id", h.GetPayment)
	payments.POST("/:id/refund", h.Refund)
}

// Webhook must acknowledge every resolvable delivery with 200, including
// duplicates and callbacks for unknown transactions, or the gateway keeps
// retrying. Only malformed bodies and storage failures are non-200.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	var req dto.PaymentWebhookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ExternalTransactionID == "" || req.Outcome == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "external_transaction_id and outcome are required")
	}

	result, err := h.svc.Reconcile(
		c.Request().Context(),
		req.ExternalTransactionID,
		service.GatewayOutcome(req.Outcome),
		req.GatewayReference,
	)
	if err != nil {
		return err
	}

	resp := map[string]any{"acknowledged": true}
	if result.Payment != nil {
		resp["status"] = result.Payment.Status
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PaymentHandler) GetPayment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}

func (h *PaymentHandler) Refund(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payment id")
	}

	payment, err := h.svc.Refund(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}
