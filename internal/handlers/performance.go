package handlers

import (
	"context"
	"net/http"

	"nva-backoffice/internal/middleware"
	"nva-backoffice/internal/services"

	"github.com/gin-gonic/gin"
)

// PerformanceHandler serves the evaluation group: live snapshots, stored
// rankings, presence statistics, AI analysis and exports.
type PerformanceHandler struct {
	perf     *services.PerformanceService
	analysis *services.AnalysisService
	export   *services.ExportService
}

type CalculateRankingsRequest struct {
	Month string `json:"month" binding:"omitempty,yearmonth"`
}

type presenceStatsQuery struct {
	Month   string `form:"month" binding:"omitempty,yearmonth"`
	AgentID uint   `form:"agent_id"`
}

type analysisQuery struct {
	Month   string `form:"month" binding:"omitempty,yearmonth"`
	Refresh bool   `form:"refresh"`
}

func NewPerformanceHandler(perf *services.PerformanceService, analysis *services.AnalysisService, export *services.ExportService) *PerformanceHandler {
	return &PerformanceHandler{perf: perf, analysis: analysis, export: export}
}

func (h *PerformanceHandler) AgentPerformances(c *gin.Context) {
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	snap, err := h.perf.Snapshot(c.Request.Context(), q.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *PerformanceHandler) Rankings(c *gin.Context) {
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	rankings, err := h.perf.Rankings(c.Request.Context(), q.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rankings": rankings})
}

func (h *PerformanceHandler) CalculateRankings(c *gin.Context) {
	var req CalculateRankingsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}
	rankings, err := h.perf.CalculateRankings(c.Request.Context(), req.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rankings calculated successfully", "rankings": rankings})
}

// PresenceStats reports the caller's own figures unless the caller is an
// admin, who may pick any agent or the whole team.
func (h *PerformanceHandler) PresenceStats(c *gin.Context) {
	var q presenceStatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	actor := middleware.GetActor(c)
	if !actor.IsAdmin {
		q.AgentID = actor.ID
	}
	stats, err := h.perf.PresenceStats(c.Request.Context(), q.Month, q.AgentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PerformanceHandler) Analysis(c *gin.Context) {
	var q analysisQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	if c.Request.Method == http.MethodPost {
		q.Refresh = true
	}
	res, err := h.analysis.Analysis(c.Request.Context(), q.Month, q.Refresh)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PerformanceHandler) ExportCSV(c *gin.Context) {
	h.sendExport(c, h.export.CSV)
}

func (h *PerformanceHandler) ExportXLSX(c *gin.Context) {
	h.sendExport(c, h.export.XLSX)
}

func (h *PerformanceHandler) sendExport(c *gin.Context, render func(ctx context.Context, month string) (*services.Export, error)) {
	var q monthQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}
	out, err := render(c.Request.Context(), q.Month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+out.Filename+`"`)
	c.Data(http.StatusOK, out.ContentType, out.Data)
}
