package handlers

import (
	"net/http"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	presences *services.PresenceService
}

type PresenceRequest struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LocationName string   `json:"location_name" binding:"max=255"`
	Notes        string   `json:"notes"`
}

type PresenceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func NewPresenceHandler(presences *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presences: presences}
}

func (h *PresenceHandler) Create(c *gin.Context) {
	var req PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// Check in as pending
	p, err := h.presences.Create(c.Request.Context(), middleware.GetAgentID(c), services.PresenceInput{
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: req.LocationName,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"presence": p})
}

func (h *PresenceHandler) List(c *gin.Context) {
	list, err := h.presences.List(c.Request.Context(), middleware.GetActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presences": list})
}

func (h *PresenceHandler) Mine(c *gin.Context) {
	list, err := h.presences.Mine(c.Request.Context(), middleware.GetAgentID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presences": list})
}

func (h *PresenceHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.presences.Get(c.Request.Context(), middleware.GetActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": p})
}

func (h *PresenceHandler) AddPhoto(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	// Get uploaded file
	upload, closeFn, ok := formUpload(c, "photo")
	if !ok {
		return
	}
	defer closeFn()

	photo, err := h.presences.AddPhoto(c.Request.Context(), middleware.GetAgentID(c), id, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"photo": photo})
}

func (h *PresenceHandler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req PresenceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	// Approve or reject
	p, err := h.presences.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": p})
}

func (h *PresenceHandler) Dashboard(c *gin.Context) {
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	dash, err := h.presences.Dashboard(c.Request.Context(), q.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
