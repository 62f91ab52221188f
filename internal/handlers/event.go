package handlers

import (
	"net/http"
	"time"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type EventHandler struct {
	events *services.EventService
}

type EventRequest struct {
	Location    *string    `json:"location" binding:"omitempty,max=255"`
	CompanyName *string    `json:"company_name" binding:"omitempty,max=255"`
	EventCode   *string    `json:"event_code" binding:"omitempty,max=50"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	AgentIDs    []uint     `json:"agent_ids"`
}

func (r EventRequest) input() services.EventInput {
	return services.EventInput{
		Location:    r.Location,
		CompanyName: r.CompanyName,
		EventCode:   r.EventCode,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		AgentIDs:    r.AgentIDs,
	}
}

type PerformanceRequest struct {
	EventID            *uint            `json:"event_id"`
	Revenue            *decimal.Decimal `json:"revenue"`
	ProductsSold       *int             `json:"products_sold" binding:"omitempty,min=0"`
	ClientSatisfaction *int             `json:"client_satisfaction" binding:"omitempty,min=0,max=5"`
	Notes              *string          `json:"notes"`
}

func (r PerformanceRequest) input() services.PerformanceInput {
	return services.PerformanceInput{
		EventID:            r.EventID,
		Revenue:            r.Revenue,
		ProductsSold:       r.ProductsSold,
		ClientSatisfaction: r.ClientSatisfaction,
		Notes:              r.Notes,
	}
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

func (h *EventHandler) List(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *EventHandler) Mine(c *gin.Context) {
	events, err := h.events.Mine(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *EventHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	event, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

func (h *EventHandler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// Create event and assign agents
	event, err := h.events.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Event created successfully", "event": event})
}

func (h *EventHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// Assignments are replaced only when agent_ids is sent
	event, err := h.events.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully", "event": event})
}

func (h *EventHandler) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.events.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully"})
}

func (h *EventHandler) AvailableAgents(c *gin.Context) {
	// Get agents free for the whole range
	agents, err := h.events.AvailableAgents(c.Request.Context(), c.Query("start_date"), c.Query("end_date"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": services.NewProfiles(agents)})
}

func (h *EventHandler) Performances(c *gin.Context) {
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	eventID, ok := optionalID(c, "event_id")
	if !ok {
		return
	}
	perfs, err := h.events.Performances(c.Request.Context(), eventID, q.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"performances": perfs})
}

func (h *EventHandler) Performance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	perf, err := h.events.Performance(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"performance": perf})
}

func (h *EventHandler) CreatePerformance(c *gin.Context) {
	var req PerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	perf, err := h.events.CreatePerformance(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"performance": perf})
}

func (h *EventHandler) UpdatePerformance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	perf, err := h.events.UpdatePerformance(c.Request.Context(), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"performance": perf})
}

func (h *EventHandler) DeletePerformance(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.events.DeletePerformance(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Performance deleted successfully"})
}
