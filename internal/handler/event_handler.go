package handler

import (
	"net/http"

	"github.com/Eursukkul/ticketgate/internal/dto"
	"github.com/Eursukkul/ticketgate/internal/models"
	"github.com/Eursukkul/ticketgate/internal/service"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type EventHandler struct {
	svc service.EventService
}

func NewEventHandler(svc service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) RegisterRoutes(e *echo.Echo) {
	events := e.Group("/api/v1/events")
	events.POST("", h.CreateEvent)
	events.GET("", h.ListEvents)
	events.GET("/:id", h.GetEvent)
	events.POST("/:id/categories", h.AddCategory)
}

func (h *EventHandler) CreateEvent(c echo.Context) error {
	var req dto.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Code == "" || req.Name == "" || req.MaxCapacity <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "code, name and max_capacity (>0) are required")
	}

	event := &models.Event{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		MaxCapacity: req.MaxCapacity,
		Status:      models.EventActive,
	}
	for _, cat := range req.Categories {
		if cat.Name == "" || cat.MaxQuantity <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "category name and max_quantity (>0) are required")
		}
		event.Categories = append(event.Categories, models.TicketCategory{
			Name:        cat.Name,
			Price:       cat.Price,
			MaxQuantity: cat.MaxQuantity,
			IsActive:    true,
		})
	}

	if err := h.svc.CreateEvent(c.Request().Context(), event); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, dto.ToEventResponse(event))
}

func (h *EventHandler) GetEvent(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	event, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.ToEventResponse(event))
}

func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.svc.ListEvents(c.Request().Context())
	if err != nil {
		return err
	}

	resp := make([]dto.EventResponse, len(events))
	for i, e := range events {
		resp[i] = dto.ToEventResponse(&e)
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) AddCategory(c echo.Context) error {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}

	var req dto.CreateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" || req.MaxQuantity <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "name and max_quantity (>0) are required")
	}

	category := &models.TicketCategory{
		EventID:     eventID,
		Name:        req.Name,
		Price:       req.Price,
		MaxQuantity: req.MaxQuantity,
		IsActive:    true,
	}
	if err := h.svc.AddCategory(c.Request().Context(), category); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, category)
}
