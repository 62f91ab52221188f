package handlers

import (
	"net/http"

	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboard *services.DashboardService
}

func NewDashboardHandler(dashboard *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *DashboardHandler) RecentEvents(c *gin.Context) {
	events, err := h.dashboard.RecentEvents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *DashboardHandler) RecentPayments(c *gin.Context) {
	payments, err := h.dashboard.RecentPayments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *DashboardHandler) PaymentChart(c *gin.Context) {
	points, err := h.dashboard.PaymentChart(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chart": points})
}
