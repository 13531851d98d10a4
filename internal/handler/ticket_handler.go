package handler

import (
	"net/http"

	"github.com/Eursukkul/ticketgate/internal/dto"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type TicketHandler struct {
	svc service.TicketService
}

func NewTicketHandler(svc service.TicketService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

func (h *TicketHandler) RegisterRoutes(e *echo.Echo) {
	tickets := e.Group("/api/v1/tickets")
	tickets.POST("", h.Purchase)
	tickets.GET("/:id", h.GetTicket)
	tickets.POST("/:id/cancel", h.CancelTicket)
	tickets.POST("/:id/transfer", h.TransferTicket)

	e.GET("/api/v1/users/:id/tickets", h.ListUserTickets)
}

func (h *TicketHandler) Purchase(c echo.Context) error {
	var req dto.PurchaseTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.EventID == uuid.Nil || req.CategoryID == uuid.Nil || req.UserID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "event_id, category_id and user_id are required")
	}
	if req.Method == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "method is required")
	}

	ticket, err := h.svc.Purchase(c.Request().Context(), service.PurchaseParams{
		EventID:        req.EventID,
		CategoryID:     req.CategoryID,
		UserID:         req.UserID,
		Method:         req.Method,
		HolderName:     req.HolderName,
		HolderDocument: req.HolderDocument,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) GetTicket(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) ListUserTickets(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	tickets, err := h.svc.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	resp := make([]dto.TicketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = dto.ToTicketResponse(&t)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *TicketHandler) CancelTicket(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	ticket, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToTicketResponse(ticket))
}

func (h *TicketHandler) TransferTicket(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid ticket id")
	}

	var req dto.TransferTicketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.NewUserID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "new_user_id is required")
	}

	ticket, err := h.svc.Transfer(c.Request().Context(), id, service.TransferParams{
		NewUserID:      req.NewUserID,
		HolderName:     req.HolderName,
		HolderDocument: req.HolderDocument,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToTicketResponse(ticket))
}
