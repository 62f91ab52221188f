package handlers

import (
	"net/http"
	"strconv"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

type AgendaHandler struct {
	agenda *services.AgendaService
}

type AvailabilityRequest struct {
	Date        string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	IsAvailable *bool  `json:"is_available"`
	Note        string `json:"note" binding:"max=255"`
}

func (r AvailabilityRequest) input() services.AvailabilityInput {
	return services.AvailabilityInput{Date: r.Date, IsAvailable: r.IsAvailable, Note: r.Note}
}

type PreferenceRequest struct {
	PreferredLocations  []string `json:"preferred_locations"`
	PreferredEventTypes []string `json:"preferred_event_types"`
	MaxEventsPerWeek    *int     `json:"max_events_per_week" binding:"omitempty,min=0"`
	MaxEventsPerMonth   *int     `json:"max_events_per_month" binding:"omitempty,min=0"`
}

func NewAgendaHandler(agenda *services.AgendaService) *AgendaHandler {
	return &AgendaHandler{agenda: agenda}
}

func (h *AgendaHandler) Month(c *gin.Context) {
	year, yerr := strconv.Atoi(c.Param("year"))
	month, merr := strconv.Atoi(c.Param("month"))
	if yerr != nil || merr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": map[string]string{"month": "year and month must be integers"}})
		return
	}
	agenda, err := h.agenda.Month(c.Request.Context(), middleware.GetAgentID(c), year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agenda)
}

func (h *AgendaHandler) Availabilities(c *gin.Context) {
	list, err := h.agenda.Availabilities(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availabilities": list})
}

// SaveAvailability answers 201 when a new date was declared and 200 when an
// existing declaration was replaced.
func (h *AgendaHandler) SaveAvailability(c *gin.Context) {
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	a, created, err := h.agenda.SaveAvailability(c.Request.Context(), middleware.GetAgentID(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"availability": a})
}

func (h *AgendaHandler) Availability(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a, err := h.agenda.Availability(c.Request.Context(), middleware.GetAgentID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": a})
}

func (h *AgendaHandler) UpdateAvailability(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	a, err := h.agenda.UpdateAvailability(c.Request.Context(), middleware.GetAgentID(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availability": a})
}

func (h *AgendaHandler) DeleteAvailability(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.agenda.DeleteAvailability(c.Request.Context(), middleware.GetAgentID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Availability deleted successfully"})
}

func (h *AgendaHandler) Preference(c *gin.Context) {
	pref, err := h.agenda.Preference(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preference": pref})
}

func (h *AgendaHandler) SavePreference(c *gin.Context) {
	var req PreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	pref, err := h.agenda.SavePreference(c.Request.Context(), middleware.GetAgentID(c), services.PreferenceInput{
		PreferredLocations:  req.PreferredLocations,
		PreferredEventTypes: req.PreferredEventTypes,
		MaxEventsPerWeek:    req.MaxEventsPerWeek,
		MaxEventsPerMonth:   req.MaxEventsPerMonth,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preference": pref})
}
